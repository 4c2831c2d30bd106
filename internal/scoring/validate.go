package scoring

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/verte-zerg/quiver/internal/model"
)

// NewSession holds the parameters of a session to create.
type NewSession struct {
	OwnerID       string            `validate:"required"`
	ArcherName    string            `validate:"max=100"`
	ArcherSurname string            `validate:"max=100"`
	BowType       model.BowType     `validate:"bowtype"`
	Distance      float64           `validate:"gt=0"`
	TotalEnds     int               `validate:"gt=0"`
	ArrowsPerEnd  int               `validate:"gt=0"`
	Kind          model.SessionKind `validate:"sessionkind"`
}

// NewSightSetting holds the parameters of a sight mark to add.
type NewSightSetting struct {
	OwnerID       string  `validate:"required"`
	BowIdentifier string  `validate:"required"`
	Distance      float64 `validate:"gt=0"`
	SightMark     string  `validate:"required"`
	Notes         string
}

// SightUpdate is a partial update; nil fields are left unchanged.
type SightUpdate struct {
	BowIdentifier *string
	Distance      *float64
	SightMark     *string
	Notes         *string
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("bowtype", func(fl validator.FieldLevel) bool {
		return model.BowType(fl.Field().String()).Valid()
	})
	_ = validate.RegisterValidation("sessionkind", func(fl validator.FieldLevel) bool {
		return model.SessionKind(fl.Field().String()).Valid()
	})
}

// checkStruct runs the struct tags and reports failures as ErrInvalidArgument.
func checkStruct(op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidArgument, err)
	}
	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		problems = append(problems, describeField(fe))
	}
	return fmt.Errorf("%s: %w: %s", op, ErrInvalidArgument, strings.Join(problems, "; "))
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s (got %v)", fe.Field(), fe.Param(), fe.Value())
	case "max":
		return fmt.Sprintf("%s is longer than %s characters", fe.Field(), fe.Param())
	case "bowtype":
		return fmt.Sprintf("%s %q is not one of compound, recurve, barebow", fe.Field(), fe.Value())
	case "sessionkind":
		return fmt.Sprintf("%s %q is not one of practice, tournament", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

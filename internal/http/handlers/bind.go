package handlers

import (
	"errors"
	"fmt"
	"io"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/pathfinder-backend/internal/domain/catalog"
	"github.com/yungbote/pathfinder-backend/internal/platform/apierr"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request structs.
// Safe to call more than once.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		_ = v.RegisterValidation("externalid", func(fl validator.FieldLevel) bool {
			return validExternalID(fl.Field().String())
		})
	})
}

// validExternalID mirrors the importer: at most ExternalIDMaxLen runes, all
// printable.
func validExternalID(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > catalog.ExternalIDMaxLen {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool { return !unicode.IsPrint(r) }) < 0
}

// fieldName reports fields by their wire name in validation messages.
func fieldName(fld reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(key), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return fld.Name
}

// bindJSON decodes the body into req and turns binding failures into 400s
// naming the first offending field.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return bindError(err)
	}
	return nil
}

func bindQuery(c *gin.Context, req any) error {
	if err := c.ShouldBindQuery(req); err != nil {
		return bindError(err)
	}
	return nil
}

func bindError(err error) error {
	if errors.Is(err, io.EOF) {
		return apierr.Validation("request body is required")
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			return apierr.Validation("%s is required", field)
		case "externalid":
			return apierr.Validation("%s is not a valid external id", field)
		case "email":
			return apierr.Validation("%s must be a valid email address", field)
		case "min":
			return apierr.Validation("%s must be at least %s characters", field, fe.Param())
		case "max":
			return apierr.Validation("%s must be at most %s characters", field, fe.Param())
		default:
			return apierr.Validation("%s is invalid", field)
		}
	}
	return apierr.Validation("invalid request: %s", err.Error())
}

// ratingString accepts a JSON number or string rating and returns its text so
// the service can reject fractional values.
func ratingString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

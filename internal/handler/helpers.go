package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strconv"

	"cajapos/internal/apierror"
	"cajapos/internal/middleware"
	"cajapos/internal/pos"
	"cajapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var validate = validator.New()

func init() {
	// decimal.Decimal validates as a float so min=0, gt=0 and required work.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if v, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := v.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
}

// bindAndValidate binds the JSON body and runs the validator tags.
// On failure the response is already written and the caller must return.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return false
	}
	return validateStruct(c, req)
}

func validateStruct(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		fields := make(map[string]string)
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

func parseInvoiceID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, apierror.New("ID de factura invalido"))
		return 0, false
	}
	return id, true
}

// writeError maps a domain error to its status and writes the envelope.
// Backend messages (rechazo) are shown verbatim; internals are not.
func writeError(c *gin.Context, err error) {
	kind := errorKind(err)
	status := statusFor(kind)

	msg := err.Error()
	if kind == "interno" {
		log.Error().Err(err).Str("request_id", c.GetString(middleware.RequestIDKey)).Str("path", c.FullPath()).Msg("handler: internal error")
		msg = "Error interno del servidor"
	}
	c.JSON(status, apierror.WithKind(msg, kind))
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound),
		errors.Is(err, service.ErrNoReport),
		errors.Is(err, pos.ErrPDFNotAvailable):
		return "no_encontrado"
	}
	return pos.ErrorKind(err)
}

func statusFor(kind string) int {
	switch kind {
	case "validacion":
		return http.StatusUnprocessableEntity
	case "no_encontrado":
		return http.StatusNotFound
	case "rechazo", "parcial":
		return http.StatusConflict
	case "transporte":
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

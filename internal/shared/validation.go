package shared

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// FieldErrors turns validator failures into per-field messages keyed by
// struct field name. Other errors are reported under "general".
func FieldErrors(err error) map[string]string {
	out := make(map[string]string)
	if err == nil {
		return out
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["general"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = fieldMessage(fe)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "Campo obligatorio"
	case "email":
		return "Correo inválido"
	case "min":
		if fe.Kind().String() == "string" {
			return "Debe tener al menos " + fe.Param() + " caracteres"
		}
		return "Debe ser al menos " + fe.Param()
	case "max":
		return "Debe ser como máximo " + fe.Param()
	case "gt":
		return "Debe ser mayor que " + fe.Param()
	case "gte":
		return "Debe ser mayor o igual a " + fe.Param()
	case "oneof":
		return "Valor no permitido"
	case "datetime":
		return "Fecha inválida"
	}
	return fe.Error()
}

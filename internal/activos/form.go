package activos

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/activos-fijos/activos/internal/backend"
)

type activoForm struct {
	Codigo           string  `validate:"required,max=32"`
	Nombre           string  `validate:"required,max=120"`
	Descripcion      string  `validate:"max=500"`
	Categoria        string  `validate:"required,max=60"`
	Estado           string  `validate:"omitempty,oneof=disponible asignado mantenimiento baja"`
	Ubicacion        string  `validate:"max=120"`
	ValorAdquisicion float64 `validate:"gt=0"`
	VidaUtil         int     `validate:"gte=1,max=100"`
	FechaAdquisicion string  `validate:"required,datetime=2006-01-02"`
}

// parseForm reads the posted asset. Numeric fields that do not parse are
// reported in the returned map and left zero.
func parseForm(r *http.Request) (activoForm, map[string]string) {
	problems := make(map[string]string)
	form := activoForm{
		Codigo:           strings.TrimSpace(r.PostFormValue("codigo")),
		Nombre:           strings.TrimSpace(r.PostFormValue("nombre")),
		Descripcion:      strings.TrimSpace(r.PostFormValue("descripcion")),
		Categoria:        strings.TrimSpace(r.PostFormValue("categoria")),
		Estado:           strings.TrimSpace(r.PostFormValue("estado")),
		Ubicacion:        strings.TrimSpace(r.PostFormValue("ubicacion")),
		FechaAdquisicion: strings.TrimSpace(r.PostFormValue("fecha_adquisicion")),
	}
	if raw := strings.TrimSpace(r.PostFormValue("valor_adquisicion")); raw != "" {
		// Accept 1.500.000,50 as typed in es-CL as well as 1500000.50.
		if strings.Contains(raw, ",") {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			problems["ValorAdquisicion"] = "Número inválido"
		}
		form.ValorAdquisicion = v
	}
	if raw := strings.TrimSpace(r.PostFormValue("vida_util")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			problems["VidaUtil"] = "Número inválido"
		}
		form.VidaUtil = v
	}
	return form, problems
}

func formFrom(a backend.Activo) activoForm {
	form := activoForm{
		Codigo:           a.Codigo,
		Nombre:           a.Nombre,
		Descripcion:      a.Descripcion,
		Categoria:        a.Categoria,
		Estado:           a.Estado,
		Ubicacion:        a.Ubicacion,
		ValorAdquisicion: a.ValorAdquisicion,
		VidaUtil:         a.VidaUtil,
	}
	if !a.FechaAdquisicion.IsZero() {
		form.FechaAdquisicion = a.FechaAdquisicion.Format("2006-01-02")
	}
	return form
}

func (f activoForm) input() backend.ActivoInput {
	return backend.ActivoInput{
		Codigo:           f.Codigo,
		Nombre:           f.Nombre,
		Descripcion:      f.Descripcion,
		Categoria:        f.Categoria,
		Estado:           f.Estado,
		Ubicacion:        f.Ubicacion,
		ValorAdquisicion: f.ValorAdquisicion,
		VidaUtil:         f.VidaUtil,
		FechaAdquisicion: f.FechaAdquisicion,
	}
}

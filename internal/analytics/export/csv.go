// Package export serialises dashboard listings for download.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/activos-fijos/activos/internal/backend"
)

// WriteActivosCSV emits the asset register as CSV.
func WriteActivosCSV(w io.Writer, activos []backend.Activo) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write([]string{"Código", "Nombre", "Categoría", "Estado", "Ubicación", "Valor adquisición", "Vida útil", "Fecha adquisición"}); err != nil {
		return err
	}
	for _, a := range activos {
		fecha := ""
		if !a.FechaAdquisicion.IsZero() {
			fecha = a.FechaAdquisicion.Format("2006-01-02")
		}
		if err := writer.Write([]string{
			a.Codigo,
			a.Nombre,
			a.Categoria,
			a.Estado,
			a.Ubicacion,
			formatFloat(a.ValorAdquisicion),
			strconv.Itoa(a.VidaUtil),
			fecha,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteDepreciacionCSV prints a depreciation schedule to CSV.
func WriteDepreciacionCSV(w io.Writer, dep backend.Depreciacion) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Año", "Depreciación", "Acumulada", "Valor libro"}); err != nil {
		return err
	}
	for _, p := range dep.Periodos {
		if err := writer.Write([]string{
			strconv.Itoa(p.Anio),
			formatFloat(p.Depreciacion),
			formatFloat(p.Acumulada),
			formatFloat(p.ValorLibro),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

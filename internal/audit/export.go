package audit

import (
	"encoding/csv"
	"io"

	"github.com/activos-fijos/activos/internal/backend"
)

// WriteCSV writes audit entries as CSV.
func WriteCSV(w io.Writer, rows []backend.Registro) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"Fecha", "Usuario", "Acción", "Módulo", "Detalle"}); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Fecha.Format("2006-01-02 15:04:05"),
			row.Usuario,
			row.Accion,
			row.Modulo,
			row.Detalle,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

package backend

import (
	"context"
	"time"
)

// Audit log filters.
const (
	FilterUsuario = "usuario"
	FilterAccion  = "accion"
	FilterDesde   = "desde"
	FilterHasta   = "hasta"
)

// Registro is one audit log entry.
type Registro struct {
	ID      int64     `json:"id"`
	Usuario string    `json:"usuario"`
	Accion  string    `json:"accion"`
	Modulo  string    `json:"modulo"`
	Detalle string    `json:"detalle"`
	Fecha   time.Time `json:"fecha"`
}

// ListBitacora returns a page of audit log entries.
func (c *Client) ListBitacora(ctx context.Context, params ListParams) (Page[Registro], error) {
	var page Page[Registro]
	err := c.get(ctx, "/bitacora", params.Values(), &page)
	return page, err
}

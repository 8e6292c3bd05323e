package backend

import (
	"context"
	"time"
)

// Entrega hands an asset out to a responsible person.
type Entrega struct {
	ID            int64     `json:"id"`
	ActivoID      int64     `json:"activo_id"`
	Activo        *Activo   `json:"activo,omitempty"`
	Responsable   string    `json:"responsable"`
	Compania      string    `json:"compania"`
	Fecha         time.Time `json:"fecha"`
	Observaciones string    `json:"observaciones"`
	Devuelta      bool      `json:"devuelta"`
}

// EntregaInput records a hand-out. Fecha is YYYY-MM-DD.
type EntregaInput struct {
	ActivoID      int64  `json:"activo_id"`
	Responsable   string `json:"responsable"`
	Compania      string `json:"compania"`
	Fecha         string `json:"fecha"`
	Observaciones string `json:"observaciones,omitempty"`
}

// Devolucion returns a handed-out asset.
type Devolucion struct {
	ID            int64     `json:"id"`
	EntregaID     int64     `json:"entrega_id"`
	ActivoID      int64     `json:"activo_id"`
	Activo        *Activo   `json:"activo,omitempty"`
	EstadoActivo  string    `json:"estado_activo"`
	Fecha         time.Time `json:"fecha"`
	Observaciones string    `json:"observaciones"`
}

// DevolucionInput records a return. Fecha is YYYY-MM-DD.
type DevolucionInput struct {
	EntregaID     int64  `json:"entrega_id"`
	EstadoActivo  string `json:"estado_activo"`
	Fecha         string `json:"fecha"`
	Observaciones string `json:"observaciones,omitempty"`
}

// ListEntregas returns a page of hand-outs.
func (c *Client) ListEntregas(ctx context.Context, params ListParams) (Page[Entrega], error) {
	var page Page[Entrega]
	err := c.get(ctx, "/entregas", params.Values(), &page)
	return page, err
}

// CreateEntrega records a hand-out.
func (c *Client) CreateEntrega(ctx context.Context, input EntregaInput) (Entrega, error) {
	var entrega Entrega
	err := c.post(ctx, "/entregas", input, &entrega)
	return entrega, err
}

// ListDevoluciones returns a page of returns.
func (c *Client) ListDevoluciones(ctx context.Context, params ListParams) (Page[Devolucion], error) {
	var page Page[Devolucion]
	err := c.get(ctx, "/entregas/devoluciones", params.Values(), &page)
	return page, err
}

// CreateDevolucion records a return.
func (c *Client) CreateDevolucion(ctx context.Context, input DevolucionInput) (Devolucion, error) {
	var devolucion Devolucion
	err := c.post(ctx, "/entregas/devoluciones", input, &devolucion)
	return devolucion, err
}

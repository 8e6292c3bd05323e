package backend

import (
	"context"
	"time"
)

// Asset states known to the backend.
const (
	EstadoDisponible    = "disponible"
	EstadoAsignado      = "asignado"
	EstadoMantenimiento = "mantenimiento"
	EstadoBaja          = "baja"
)

// Estados lists the asset states in display order.
var Estados = []string{EstadoDisponible, EstadoAsignado, EstadoMantenimiento, EstadoBaja}

// Asset listing filters.
const (
	FilterEstado    = "estado"
	FilterCategoria = "categoria"
)

// Activo is a registered fixed asset.
type Activo struct {
	ID               int64     `json:"id"`
	Codigo           string    `json:"codigo"`
	Nombre           string    `json:"nombre"`
	Descripcion      string    `json:"descripcion"`
	Categoria        string    `json:"categoria"`
	Estado           string    `json:"estado"`
	Ubicacion        string    `json:"ubicacion"`
	ValorAdquisicion float64   `json:"valor_adquisicion"`
	VidaUtil         int       `json:"vida_util"`
	FechaAdquisicion time.Time `json:"fecha_adquisicion"`
	CreatedAt        time.Time `json:"created_at"`
}

// ActivoInput creates or updates an asset. FechaAdquisicion is YYYY-MM-DD.
type ActivoInput struct {
	Codigo           string  `json:"codigo"`
	Nombre           string  `json:"nombre"`
	Descripcion      string  `json:"descripcion,omitempty"`
	Categoria        string  `json:"categoria"`
	Estado           string  `json:"estado,omitempty"`
	Ubicacion        string  `json:"ubicacion,omitempty"`
	ValorAdquisicion float64 `json:"valor_adquisicion"`
	VidaUtil         int     `json:"vida_util"`
	FechaAdquisicion string  `json:"fecha_adquisicion"`
}

// ListActivos returns a page of assets filtered by search, estado and categoria.
func (c *Client) ListActivos(ctx context.Context, params ListParams) (Page[Activo], error) {
	var page Page[Activo]
	err := c.get(ctx, "/activos", params.Values(), &page)
	return page, err
}

// GetActivo returns one asset.
func (c *Client) GetActivo(ctx context.Context, id int64) (Activo, error) {
	var activo Activo
	err := c.get(ctx, pathf("/activos/%s", id), nil, &activo)
	return activo, err
}

// CreateActivo registers an asset.
func (c *Client) CreateActivo(ctx context.Context, input ActivoInput) (Activo, error) {
	var activo Activo
	err := c.post(ctx, "/activos", input, &activo)
	return activo, err
}

// UpdateActivo modifies an asset.
func (c *Client) UpdateActivo(ctx context.Context, id int64, input ActivoInput) (Activo, error) {
	var activo Activo
	err := c.patch(ctx, pathf("/activos/%s", id), input, &activo)
	return activo, err
}

// DeleteActivo removes an asset.
func (c *Client) DeleteActivo(ctx context.Context, id int64) error {
	return c.delete(ctx, pathf("/activos/%s", id))
}

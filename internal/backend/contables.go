package backend

import "context"

// Periodo is one year of a depreciation schedule.
type Periodo struct {
	Anio         int     `json:"anio"`
	Depreciacion float64 `json:"depreciacion"`
	Acumulada    float64 `json:"depreciacion_acumulada"`
	ValorLibro   float64 `json:"valor_libro"`
}

// Depreciacion is the straight-line depreciation schedule of an asset.
type Depreciacion struct {
	ActivoID      int64     `json:"activo_id"`
	Metodo        string    `json:"metodo"`
	ValorInicial  float64   `json:"valor_inicial"`
	ValorResidual float64   `json:"valor_residual"`
	Periodos      []Periodo `json:"periodos"`
}

// GetDepreciacion computes the depreciation schedule of an asset.
func (c *Client) GetDepreciacion(ctx context.Context, activoID int64) (Depreciacion, error) {
	var dep Depreciacion
	err := c.get(ctx, pathf("/contables/depreciacion/%s", activoID), nil, &dep)
	return dep, err
}

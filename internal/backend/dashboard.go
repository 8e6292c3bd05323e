package backend

import "context"

// Movimiento counts hand-outs and returns in one month (YYYY-MM).
type Movimiento struct {
	Mes          string `json:"mes"`
	Entregas     int    `json:"entregas"`
	Devoluciones int    `json:"devoluciones"`
}

// Dashboard is the KPI summary.
type Dashboard struct {
	TotalActivos    int          `json:"total_activos"`
	Disponibles     int          `json:"disponibles"`
	Asignados       int          `json:"asignados"`
	EnMantenimiento int          `json:"en_mantenimiento"`
	ValorTotal      float64      `json:"valor_total"`
	Movimientos     []Movimiento `json:"movimientos"`
}

// GetDashboard returns the KPI summary.
func (c *Client) GetDashboard(ctx context.Context) (Dashboard, error) {
	var dash Dashboard
	err := c.get(ctx, "/dashboard", nil, &dash)
	return dash, err
}

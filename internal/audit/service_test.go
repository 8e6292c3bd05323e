package audit

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/activos-fijos/activos/internal/backend"
)

type pagedAPI struct {
	total  int
	calls  []backend.ListParams
	err    error
	failAt int
}

func (p *pagedAPI) ListBitacora(ctx context.Context, params backend.ListParams) (backend.Page[backend.Registro], error) {
	p.calls = append(p.calls, params)
	if p.err != nil && params.Page >= p.failAt {
		return backend.Page[backend.Registro]{}, p.err
	}
	start := (params.Page - 1) * params.Limit
	end := start + params.Limit
	if end > p.total {
		end = p.total
	}
	var rows []backend.Registro
	for i := start; i < end; i++ {
		rows = append(rows, backend.Registro{ID: int64(i + 1), Usuario: "jefe", Accion: "crear"})
	}
	last := (p.total + params.Limit - 1) / params.Limit
	return backend.Page[backend.Registro]{Data: rows, Meta: backend.Meta{Total: p.total, Page: params.Page, Limit: params.Limit, LastPage: last}}, nil
}

func TestFiltersParams(t *testing.T) {
	f := Filters{
		Usuario: "jefe",
		Desde:   time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		Page:    3,
	}
	params := f.Params()
	assert.Equal(t, 3, params.Page)
	assert.Equal(t, backend.DefaultLimit, params.Limit)
	assert.Equal(t, "jefe", params.Filters[backend.FilterUsuario])
	assert.Equal(t, "2026-01-02", params.Filters[backend.FilterDesde])
	_, hasHasta := params.Filters[backend.FilterHasta]
	assert.False(t, hasHasta)
	_, hasAccion := params.Filters[backend.FilterAccion]
	assert.False(t, hasAccion)
}

func TestExportWalksPages(t *testing.T) {
	api := &pagedAPI{total: 250}
	rows, err := NewService(api).Export(context.Background(), Filters{Accion: "crear", Page: 4, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 250)
	require.Len(t, api.calls, 3)
	for i, call := range api.calls {
		assert.Equal(t, i+1, call.Page)
		assert.Equal(t, backend.MaxLimit, call.Limit)
		assert.Equal(t, "crear", call.Filters[backend.FilterAccion])
	}
}

func TestExportTooLarge(t *testing.T) {
	_, err := NewService(&pagedAPI{total: MaxExportRows + 1}).Export(context.Background(), Filters{})
	assert.ErrorIs(t, err, ErrExportTooLarge)
}

func TestExportPropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewService(&pagedAPI{total: 300, err: boom, failAt: 2}).Export(context.Background(), Filters{})
	assert.ErrorIs(t, err, boom)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []backend.Registro{{
		Usuario: "jefe",
		Accion:  "eliminar",
		Modulo:  "activos",
		Detalle: "Activo 12, \"bomba\"",
		Fecha:   time.Date(2026, 3, 4, 10, 30, 0, 0, time.UTC),
	}})
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "Fecha,Usuario,Acción,Módulo,Detalle", lines[0])
	assert.Equal(t, `2026-03-04 10:30:00,jefe,eliminar,activos,"Activo 12, ""bomba"""`, lines[1])
}

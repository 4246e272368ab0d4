package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultRules(), nil)

	tests := []struct {
		question string
		want     Intent
	}{
		{"¿Qué eventos hay el día 2?", EventListing},
		{"Actividades del dia3", EventListing},
		{"What events happen on day 3?", EventListing},
		{"¿Dónde es la misa del día 2?", Location},
		{"¿Dónde está el santuario?", Location},
		{"¿Cuándo es la peregrinación?", Time},
		{"¿Qué pasa el día 12?", Time},
		{"¿Quiénes son los ukukus?", Agent},
		{"Who performs the dance?", Agent},
		{"¿Qué es el Qoyllur Rit'i?", GenericWhat},
		{"¿Qué eventos principales hay?", EventListing},
		{"¿Qué eventos tiene la fiesta?", Location}, // "fiesta" contains "esta"
		{"¿Qué danzas se bailan?", DanceListing},
		{"¿Cuántos pueblos suben?", Count},
		{"How many nations?", Count},
		{"Peregrinación", Other},
		{"", Other},
	}
	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.question))
		})
	}
}

func TestClassifyCustomRules(t *testing.T) {
	rules := DefaultRules()
	rules.Location = append(rules.Location, "ruta")
	c := NewClassifier(rules, nil)
	assert.Equal(t, Location, c.Classify("La ruta al glaciar"))
}

func TestDayTableResolveQuestion(t *testing.T) {
	days := DefaultDayTable()

	d, ok := days.ResolveQuestion("¿Qué pasa el Dia3?")
	require.True(t, ok)
	assert.Equal(t, 3, d.Number)
	assert.Equal(t, "Dia3_LunesAscenso", d.EntityID)

	d, ok = days.ResolveQuestion("events on day 5")
	require.True(t, ok)
	assert.Equal(t, "Dia5_MiercolesAlba", d.EntityID)

	_, ok = days.ResolveQuestion("¿Qué pasa el día 12?")
	assert.False(t, ok, "día 1 must not match día 12")

	_, ok = days.ResolveQuestion("¿Dónde está Sinakara?")
	assert.False(t, ok)
}

func TestDayTableResolveEntity(t *testing.T) {
	days := DefaultDayTable()

	d, ok := days.ResolveEntity("Dia2_DomingoPartida")
	require.True(t, ok)
	assert.Equal(t, 2, d.Number)

	d, ok = days.ResolveEntity("DIA4")
	require.True(t, ok)
	assert.Equal(t, 4, d.Number)

	_, ok = days.ResolveEntity("Santuario")
	assert.False(t, ok)
}

func TestCustomDayTable(t *testing.T) {
	days := NewDayTable([]Day{
		{Number: 1, EntityID: "Vispera", Variants: []string{"  Víspera ", ""}},
		{Number: 2, EntityID: "Fiesta"},
	})
	require.Len(t, days.Days(), 2)
	assert.Equal(t, []string{"víspera"}, days.Days()[0].Variants)
	assert.Equal(t, DefaultVariants(2), days.Days()[1].Variants)

	d, ok := days.ResolveQuestion("¿Qué se hace la VÍSPERA?")
	require.True(t, ok)
	assert.Equal(t, "Vispera", d.EntityID)

	c := NewClassifier(DefaultRules(), days)
	assert.Equal(t, EventListing, c.Classify("¿Qué eventos hay en la víspera?"))
}

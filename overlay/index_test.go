package overlay

import (
	"fmt"
	"testing"

	"github.com/maxsupermanhd/chunkview/primitives"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func village(b primitives.Box) Entry {
	return Entry{Box: b, Category: "Village", Label: "village", Properties: map[string]any{"radius": 10}}
}

func TestInsertNormalizes(t *testing.T) {
	a := NewIndex()
	a.Insert(village(primitives.Box{X1: 5, Y1: 0, Z1: 5, X2: 1, Y2: 0, Z2: 1}))
	b := NewIndex()
	b.Insert(village(primitives.Box{X1: 1, Y1: 0, Z1: 1, X2: 5, Y2: 0, Z2: 5}))
	for _, p := range [][2]float64{{3, 3}, {1, 1}, {5, 5}, {6, 6}, {0, 3}} {
		assert.Equal(t, b.QueryNear(p[0], p[1], 0), a.QueryNear(p[0], p[1], 0), "at %v", p)
	}
	g := a.QueryNear(3, 3, 0)
	require.Len(t, g, 1)
	assert.Equal(t, primitives.Box{X1: 1, Y1: 0, Z1: 1, X2: 5, Y2: 0, Z2: 5}, g[0].Entries[0].Box)
}

func TestQueryNear(t *testing.T) {
	idx := NewIndex()
	idx.Insert(village(primitives.Box{X1: 0, Y1: 0, Z1: 0, X2: 10, Y2: 10, Z2: 10}))
	for i := 0; i < 20; i++ {
		f := float64(i * 3)
		idx.Insert(Entry{Box: primitives.PointBox(200+f, 64, 200), Category: "Entity", Properties: map[string]any{"n": i}})
	}
	assert.Equal(t, 5.0, idx.MaxQueryRadius())
	for _, y := range []float64{0, 5, 10, 64, 255, -30} {
		g := idx.QueryNear(5, 5, y)
		require.Len(t, g, 1, "y=%v", y)
		assert.Equal(t, "Village", g[0].Category)
		assert.Equal(t, 10, g[0].Entries[0].Properties["radius"])
	}
	assert.Empty(t, idx.QueryNear(100, 100, 64))
	assert.Empty(t, idx.QueryNear(10.5, 5, 64))

	g := idx.QueryNear(203, 200, 64)
	require.Len(t, g, 1)
	assert.Equal(t, "Entity", g[0].Category)
	assert.Equal(t, 1, g[0].Entries[0].Properties["n"])
	// below the entity
	assert.Empty(t, idx.QueryNear(203, 200, 10))
}

func TestQueryColumnGroups(t *testing.T) {
	idx := NewIndex()
	idx.Insert(village(primitives.Box{X1: 0, Y1: 60, Z1: 0, X2: 20, Y2: 70, Z2: 20}))
	idx.Insert(Entry{Box: primitives.PointBox(10, 65, 10), Category: "Entity", Label: "cow"})
	idx.Insert(Entry{Box: primitives.PointBox(10, 66, 10), Category: "Entity", Label: "pig"})
	g := idx.QueryColumn(10, 10, -64, 319)
	require.Len(t, g, 2)
	assert.Equal(t, "Entity", g[0].Category)
	assert.Len(t, g[0].Entries, 2)
	assert.Equal(t, "Village", g[1].Category)
	assert.Empty(t, idx.QueryColumn(10, 10, -64, 50))
}

func TestLargeBoxFoundFromEdge(t *testing.T) {
	idx := NewIndex()
	idx.Insert(Entry{Box: primitives.Box{X1: -100, Y1: 0, Z1: -100, X2: 100, Y2: 50, Z2: 100}, Category: "Structure.Fortress"})
	g := idx.QueryNear(-99.5, 99, 20)
	require.Len(t, g, 1)
	assert.Equal(t, KindStructure, KindOf(g[0].Category))
}

func TestVisibleAndFilter(t *testing.T) {
	idx := NewIndex()
	idx.Insert(village(primitives.Box{X1: 0, Y1: 0, Z1: 0, X2: 10, Y2: 10, Z2: 10}))
	idx.Insert(Entry{Box: primitives.PointBox(50, 0, 50), Category: "Entity"})
	all := idx.Visible(nil, -5, -5, 60, 60)
	assert.Len(t, all, 2)
	onlyVillage := idx.Visible(func(c string) bool { return c == "Village" }, -5, -5, 60, 60)
	require.Len(t, onlyVillage, 1)
	assert.Equal(t, "Village", onlyVillage[0].Category)
	assert.Empty(t, idx.Visible(nil, 20, 20, 40, 40))
	assert.Equal(t, []string{"Entity", "Village"}, idx.Categories())
}

func TestClearScope(t *testing.T) {
	idx := NewIndex()
	idx.Insert(Entry{Box: primitives.Box{X1: 0, Z1: 0, X2: 100, Z2: 100}, Category: "Structure", Scope: "overworld"})
	idx.Insert(Entry{Box: primitives.PointBox(1, 1, 1), Category: "Search", Scope: "DIM-1"})
	idx.Insert(Entry{Box: primitives.PointBox(2, 2, 2), Category: "Player"})
	idx.ClearScope("overworld")
	assert.Equal(t, 2, idx.Len())
	assert.Equal(t, 0.0, idx.MaxQueryRadius())
	assert.Empty(t, idx.QueryNear(50, 50, 10))
	assert.Len(t, idx.QueryNear(2, 2, 10), 1)
	idx.Clear()
	assert.Equal(t, 0, idx.Len())
	assert.Empty(t, idx.Categories())
}

func TestClearScopeIn(t *testing.T) {
	idx := NewIndex()
	idx.Insert(Entry{Box: primitives.PointBox(3, 64, 4), Category: "Entity", Scope: "live:overworld"})
	idx.Insert(Entry{Box: primitives.PointBox(15, 10, 15), Category: "Entity", Scope: "live:overworld"})
	idx.Insert(Entry{Box: primitives.PointBox(16, 64, 4), Category: "Entity", Scope: "live:overworld"})
	idx.Insert(Entry{Box: primitives.PointBox(5, 64, 5), Category: "Search", Scope: "overworld"})
	// crosses the chunk border
	idx.Insert(Entry{Box: primitives.Box{X1: 10, Z1: 10, X2: 20, Z2: 12}, Category: "Entity", Scope: "live:overworld"})

	idx.ClearScopeIn("live:overworld", 0, 0, 15, 15)
	assert.Equal(t, 3, idx.Len())
	assert.Empty(t, idx.QueryNear(3, 4, 100))
	assert.Empty(t, idx.QueryNear(15, 15, 100))
	assert.Len(t, idx.QueryNear(16, 4, 100), 1)
	assert.Len(t, idx.QueryNear(5, 5, 100), 1)
	assert.Len(t, idx.QueryNear(18, 11, 100), 1)
	assert.Equal(t, 5.0, idx.MaxQueryRadius())
}

func TestColors(t *testing.T) {
	a := CategoryColor("Structure.Fortress")
	assert.Equal(t, a, CategoryColor("Structure.Fortress"))
	assert.Equal(t, uint8(64), a.A)
	assert.NotEqual(t, CategoryColor("Village"), CategoryColor("Structure.Temple"))

	assert.Equal(t, uint8(0xff), EntityColor(map[string]any{"id": "minecraft:iron_golem"}).B)
	assert.Equal(t, uint8(0xff), EntityColor(map[string]any{"id": "Cow", "InLove": 0}).R)
	item := EntityColor(map[string]any{"id": "Item"})
	assert.Equal(t, uint8(0), item.R)
	assert.Equal(t, uint8(0xff), item.B)
	big := map[string]any{"id": "Zombie"}
	for i := 0; i < 25; i++ {
		big[fmt.Sprint("k", i)] = i
	}
	z := EntityColor(big)
	assert.Equal(t, uint8(0xff), z.R)
	assert.Equal(t, uint8(0), z.B)
	assert.Equal(t, uint8(128), z.A)
	assert.Equal(t, EntityColor(big), ColorFor("Entity", big))
	assert.Equal(t, CategoryColor("Village"), ColorFor("Village", nil))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindVillage, KindOf("Village"))
	assert.Equal(t, KindEntity, KindOf("entity.hostile"))
	assert.Equal(t, KindSearch, KindOf("Search"))
	assert.Equal(t, KindOther, KindOf("Player"))
	assert.Equal(t, "Other", KindOther.String())
}

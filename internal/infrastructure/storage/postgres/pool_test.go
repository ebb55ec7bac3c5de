package postgres

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_DriverPoolNotExposed(t *testing.T) {
	typ := reflect.TypeOf(Pool{})
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		assert.False(t, f.IsExported(), "field %s is exported", f.Name)
		assert.False(t, f.Anonymous, "field %s is embedded", f.Name)
	}

	// Only the engine surface and statistics are reachable from outside.
	_, ok := reflect.TypeOf(&Pool{}).MethodByName("Exec")
	assert.False(t, ok)
	_, ok = reflect.TypeOf(&Pool{}).MethodByName("Stats")
	assert.True(t, ok)
}

package rspace_test

import (
	"testing"

	"github.com/chazu/rhovm/rspace"
	"github.com/chazu/rhovm/rspace/rspacetest"
)

func TestMemoryContract(t *testing.T) {
	rspacetest.Run(t, func(t *testing.T) rspace.RSpace {
		return rspace.NewMemory()
	})
}

func TestSharedContract(t *testing.T) {
	rspacetest.Run(t, func(t *testing.T) rspace.RSpace {
		return rspace.NewShared(rspace.NewMemory())
	})
}

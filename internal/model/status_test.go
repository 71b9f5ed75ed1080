package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionMintStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"未铸造到已铸造", MintStatusUnminted, MintStatusMinted, true},
		{"已铸造到已销毁", MintStatusMinted, MintStatusBurned, true},
		{"未铸造不能直接销毁", MintStatusUnminted, MintStatusBurned, false},
		{"已销毁是终态", MintStatusBurned, MintStatusMinted, false},
		{"不能回退", MintStatusMinted, MintStatusUnminted, false},
		{"未知状态", "FROZEN", MintStatusMinted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionMintStatus(tt.from, tt.to))
		})
	}
}

func TestCanTransitionPoolStatus(t *testing.T) {
	tests := []struct {
		name    string
		from    string
		to      string
		allowed bool
	}{
		{"达标冻结", PoolStatusActive, PoolStatusDistributing, true},
		{"结算完成", PoolStatusDistributing, PoolStatusCompleted, true},
		{"不能跳过冻结直接完成", PoolStatusActive, PoolStatusCompleted, false},
		{"已完成是终态", PoolStatusCompleted, PoolStatusActive, false},
		{"冻结后不能回到活跃", PoolStatusDistributing, PoolStatusActive, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionPoolStatus(tt.from, tt.to))
		})
	}
}

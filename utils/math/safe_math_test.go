// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAdd(t *testing.T) {
	require := require.New(t)

	sum, err := Add(uint64(1), uint64(2))
	require.NoError(err)
	require.Equal(uint64(3), sum)

	sum, err = Add(uint64(math.MaxUint64), uint64(0))
	require.NoError(err)
	require.Equal(uint64(math.MaxUint64), sum)

	_, err = Add(uint64(math.MaxUint64), uint64(1))
	require.ErrorIs(err, ErrOverflow)
}

func TestSub(t *testing.T) {
	require := require.New(t)

	diff, err := Sub(uint64(3), uint64(2))
	require.NoError(err)
	require.Equal(uint64(1), diff)

	_, err = Sub(uint64(2), uint64(3))
	require.ErrorIs(err, ErrUnderflow)
}

func TestMul(t *testing.T) {
	require := require.New(t)

	product, err := Mul(uint64(3), uint64(2))
	require.NoError(err)
	require.Equal(uint64(6), product)

	product, err = Mul(uint64(math.MaxUint64), uint64(0))
	require.NoError(err)
	require.Zero(product)

	_, err = Mul(uint64(math.MaxUint64), uint64(2))
	require.ErrorIs(err, ErrOverflow)
}

func TestMulDiv(t *testing.T) {
	require := require.New(t)

	// The 3/2 credit multiple is exact for even premiums.
	credit, err := MulDiv(uint64(1_000_000_000), uint64(3), uint64(2))
	require.NoError(err)
	require.Equal(uint64(1_500_000_000), credit)

	// Odd premiums truncate toward zero.
	credit, err = MulDiv(uint64(5), uint64(3), uint64(2))
	require.NoError(err)
	require.Equal(uint64(7), credit)

	// The intermediate product is overflow-checked.
	_, err = MulDiv(uint64(math.MaxUint64), uint64(3), uint64(2))
	require.ErrorIs(err, ErrOverflow)

	_, err = MulDiv(uint64(1), uint64(1), uint64(0))
	require.ErrorIs(err, ErrDivByZero)
}

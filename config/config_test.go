// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfigDefaults(t *testing.T) {
	require := require.New(t)

	cfg, err := GetConfig(nil)
	require.NoError(err)
	require.Equal(Default, *cfg)

	cfg, err = GetConfig([]byte("{}"))
	require.NoError(err)
	require.Equal(Default, *cfg)
}

func TestGetConfigOverlay(t *testing.T) {
	require := require.New(t)

	cfg, err := GetConfig([]byte(`{"oracle-quorum": 5, "insurance-cap": 42}`))
	require.NoError(err)
	require.Equal(uint32(5), cfg.OracleQuorum)
	require.Equal(uint64(42), cfg.InsuranceCap)

	// Unset parameters keep their defaults.
	require.Equal(Default.AirlineFunding, cfg.AirlineFunding)
	require.Equal(Default.IndexRange, cfg.IndexRange)

	_, err = GetConfig([]byte(`{not json`))
	require.Error(err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		overlay   string
		shouldErr bool
	}{
		{
			name:    "defaults",
			overlay: "{}",
		},
		{
			name:      "zero payout denominator",
			overlay:   `{"payout-denominator": 0}`,
			shouldErr: true,
		},
		{
			name:      "zero quorum",
			overlay:   `{"oracle-quorum": 0}`,
			shouldErr: true,
		},
		{
			name:      "zero indexes per oracle",
			overlay:   `{"indexes-per-oracle": 0}`,
			shouldErr: true,
		},
		{
			name:      "zero index range",
			overlay:   `{"index-range": 0}`,
			shouldErr: true,
		},
		{
			// A range smaller than the assignment count would make the
			// distinct-index draw unsatisfiable.
			name:      "range smaller than assignment",
			overlay:   `{"index-range": 2, "indexes-per-oracle": 3}`,
			shouldErr: true,
		},
		{
			name:    "range equal to assignment",
			overlay: `{"index-range": 3, "indexes-per-oracle": 3}`,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			require := require.New(t)

			_, err := GetConfig([]byte(test.overlay))
			if test.shouldErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}
		})
	}
}

package openidconnect

import (
	"github.com/liveforeverx/openid-connect/document/documenttest"
	"github.com/stretchr/testify/require"
	"testing"
	"time"
)

func TestRefreshIn(t *testing.T) {

	t.Run("absent lifetime falls back to the default interval", func(t *testing.T) {
		require.Equal(t, DefaultRefreshInterval, refreshIn(nil))
	})

	t.Run("positive lifetime is used as is", func(t *testing.T) {
		require.Equal(t, 30*time.Second, refreshIn(documenttest.Lifetime(30*time.Second)))
	})

	t.Run("zero lifetime refreshes immediately", func(t *testing.T) {
		require.Equal(t, time.Duration(0), refreshIn(documenttest.Lifetime(0)))
	})

	t.Run("expired lifetime refreshes immediately", func(t *testing.T) {
		require.Equal(t, time.Duration(0), refreshIn(documenttest.Lifetime(-5*time.Second)))
	})
}

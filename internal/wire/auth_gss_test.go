package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGSSAuthenticateFailsWithoutRegisteredProvider(t *testing.T) {
	saved := newGSSProvider
	newGSSProvider = nil
	defer func() { newGSSProvider = saved }()

	s := &Session{}
	err := s.gssAuthenticate(Config{Host: "db.example.com", KrbSrvName: "postgres"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no provider is registered")
}

func TestRegisterGSSProviderInstallsFactory(t *testing.T) {
	saved := newGSSProvider
	defer func() { newGSSProvider = saved }()

	called := false
	RegisterGSSProvider(func() (GSSProvider, error) {
		called = true
		return nil, nil
	})
	require.NotNil(t, newGSSProvider)
	_, _ = newGSSProvider()
	require.True(t, called)
}

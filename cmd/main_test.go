package main

import (
  "testing"

  "github.com/stretchr/testify/require"

  "github.com/loomchat-org/loomchat-backend/internal/services"
)

func TestProductionSecretOK(t *testing.T) {
  require.False(t, productionSecretOK(""), "an empty key must not pass")
  require.False(t, productionSecretOK(services.DefaultInsecureSecret), "the dev default must not pass")
  require.True(t, productionSecretOK("a-real-secret"))
}

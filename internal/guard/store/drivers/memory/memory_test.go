package memory_test

import (
	"testing"

	"github.com/cs2central/steam-authenticator-linux/internal/guard/store/drivers/memory"
	"github.com/cs2central/steam-authenticator-linux/internal/guard/store/storetest"
)

func TestAccountsContract(t *testing.T) {
	t.Parallel()
	storetest.Run(t, memory.NewStore())
}

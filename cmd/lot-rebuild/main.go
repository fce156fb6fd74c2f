// lot-rebuild recomputes every lot's aggregate quantity from its line items
// for one business. Run it after manual database surgery or when the drift
// warnings in the logs pile up.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//	  go run ./cmd/lot-rebuild --business-id <id>
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/workflow"
)

func main() {
	businessID := flag.String("business-id", "", "Required: business id")
	flag.Parse()

	if strings.TrimSpace(*businessID) == "" {
		fmt.Fprintln(os.Stderr, "--business-id is required")
		os.Exit(1)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	ctx := context.Background()
	ctx = utils.SetBusinessIdInContext(ctx, strings.TrimSpace(*businessID))
	ctx = utils.SetUserIdInContext(ctx, 0)
	ctx = utils.SetUsernameInContext(ctx, "System")

	drifted, err := workflow.RebuildLotQuantities(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuild complete; %d lot(s) had drifted aggregates\n", drifted)
}

package workflow_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/config"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/models"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/workflow"
)

func setupIntegrationEnv(t *testing.T) context.Context {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "lotledger_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 1)
	ctx = utils.SetUsernameInContext(ctx, "test@local")
	ctx = utils.SetBusinessIdInContext(ctx, fmt.Sprintf("biz-%d", time.Now().UnixNano()))
	return ctx
}

type fixtures struct {
	kg    *models.Unit
	box   *models.Unit
	pad   *models.Product
	store *models.Position
}

// seedCatalog sets up brake pads counted in kg, with 1 box = 20 kg.
func seedCatalog(t *testing.T, ctx context.Context) fixtures {
	t.Helper()

	kg, err := models.CreateUnit(ctx, &models.NewUnit{Name: "kg", Abbreviation: "kg", Precision: models.PrecisionFour})
	if err != nil {
		t.Fatalf("CreateUnit kg: %v", err)
	}
	box, err := models.CreateUnit(ctx, &models.NewUnit{Name: "box", Abbreviation: "bx", Precision: models.PrecisionFour})
	if err != nil {
		t.Fatalf("CreateUnit box: %v", err)
	}
	pad, err := models.CreateProduct(ctx, &models.NewProduct{Name: "Brake pad", Sku: "BP-001", UnitId: kg.ID})
	if err != nil {
		t.Fatalf("CreateProduct: %v", err)
	}
	_, err = models.CreateProductUnitRate(ctx, &models.NewProductUnitRate{
		ProductId: pad.ID,
		UnitId:    box.ID,
		Rate:      decimal.NewFromInt(20),
	})
	if err != nil {
		t.Fatalf("CreateProductUnitRate: %v", err)
	}
	store, err := models.CreatePosition(ctx, &models.NewPosition{Code: "A-01", Zone: "A"})
	if err != nil {
		t.Fatalf("CreatePosition: %v", err)
	}
	return fixtures{kg: kg, box: box, pad: pad, store: store}
}

func TestDraftBookingLifecycle(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	fx := seedCatalog(t, ctx)

	lot, err := models.CreateLot(ctx, &models.NewLot{
		Warehouse:    "WH1",
		Supplier:     "ACME",
		ReceivedDate: time.Now(),
		Items: []models.NewLotItem{
			{ProductId: fx.pad.ID, Qty: decimal.NewFromInt(100), UnitName: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	if !lot.Quantity.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected aggregate 100 kg, got %s", lot.Quantity)
	}

	// Export 20 kg as a draft: stock drops immediately, paperwork pending.
	draft, err := workflow.ProcessExportWorkflow(ctx, &workflow.MovementDraftInput{
		LotId:        lot.ID,
		Counterparty: "Garage Muller",
		Lines: []workflow.MovementLineInput{
			{ProductId: fx.pad.ID, Qty: decimal.NewFromInt(20), UnitName: "kg", Price: decimal.NewFromInt(9)},
		},
	})
	if err != nil {
		t.Fatalf("ProcessExportWorkflow: %v", err)
	}
	if !draft.Lot.Quantity.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("expected 80 kg after draft export, got %s", draft.Lot.Quantity)
	}
	if draft.Emptied {
		t.Fatal("lot must not be emptied by a partial export")
	}

	pending, err := models.GetPendingDrafts(ctx, models.OrderKindExport)
	if err != nil {
		t.Fatalf("GetPendingDrafts: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending draft, got %d", len(pending))
	}

	result, err := workflow.ProcessBookingWorkflow(ctx, models.OrderKindExport, nil)
	if err != nil {
		t.Fatalf("ProcessBookingWorkflow: %v", err)
	}
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected booking failures: %+v", result.Failures)
	}
	if len(result.Orders) != 1 {
		t.Fatalf("expected 1 order, got %d", len(result.Orders))
	}
	order := result.Orders[0]
	if order.Counterparty != "Garage Muller" {
		t.Fatalf("unexpected counterparty: %q", order.Counterparty)
	}
	if !strings.HasPrefix(order.Code, "XK-") {
		t.Fatalf("export order code should use the XK- series, got %q", order.Code)
	}
	if len(order.Lines) != 1 || !order.Lines[0].Qty.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected order lines: %+v", order.Lines)
	}

	// The header must reference the consolidated draft.
	refs, err := order.DraftRefIds()
	if err != nil {
		t.Fatalf("DraftRefIds: %v", err)
	}
	if len(refs) != 1 || refs[0] != pending[0].ID {
		t.Fatalf("order must reference the booked draft id %d, got %v", pending[0].ID, refs)
	}

	// Booked movement must leave the pending queue.
	pending, err = models.GetPendingDrafts(ctx, models.OrderKindExport)
	if err != nil {
		t.Fatalf("GetPendingDrafts after booking: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending drafts after booking, got %d", len(pending))
	}

	// Booking an export pushes the book side down by the booked quantity.
	balances, err := models.GetAccountingBalances(ctx)
	if err != nil {
		t.Fatalf("GetAccountingBalances: %v", err)
	}
	if len(balances) != 1 || !balances[0].Qty.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("expected book balance -20 kg, got %+v", balances)
	}

	// Second booking run with nothing pending is rejected.
	_, err = workflow.ProcessBookingWorkflow(ctx, models.OrderKindExport, nil)
	if err == nil {
		t.Fatal("booking with no pending drafts must fail")
	}
}

func TestSplitAndMergeConserveStock(t *testing.T) {
	ctx := setupIntegrationEnv(t)
	fx := seedCatalog(t, ctx)

	lot, err := models.CreateLot(ctx, &models.NewLot{
		Warehouse:    "WH1",
		PositionId:   &fx.store.ID,
		Supplier:     "ACME",
		ReceivedDate: time.Now(),
		Items: []models.NewLotItem{
			{ProductId: fx.pad.ID, Qty: decimal.NewFromInt(50), UnitName: "box"},
		},
	})
	if err != nil {
		t.Fatalf("CreateLot: %v", err)
	}
	if !lot.Quantity.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected aggregate 1000 kg, got %s", lot.Quantity)
	}

	// Carve 30 kg (1.5 box) into a new lot.
	split, err := workflow.ProcessSplitWorkflow(ctx, &workflow.SplitLotInput{
		SourceLotId: lot.ID,
		Items: []workflow.SplitLotItemInput{
			{ProductId: fx.pad.ID, Qty: decimal.NewFromInt(30), UnitName: "kg"},
		},
	})
	if err != nil {
		t.Fatalf("ProcessSplitWorkflow: %v", err)
	}
	if !split.Source.Quantity.Equal(decimal.NewFromInt(970)) {
		t.Fatalf("expected 970 kg left in source, got %s", split.Source.Quantity)
	}
	if !split.NewLot.Quantity.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("expected 30 kg in the new lot, got %s", split.NewLot.Quantity)
	}
	if len(split.Source.Items) != 1 || !split.Source.Items[0].Qty.Equal(decimal.NewFromFloat(48.5)) {
		t.Fatalf("expected 48.5 box remaining, got %+v", split.Source.Items)
	}
	total := split.Source.Quantity.Add(split.NewLot.Quantity)
	if !total.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("split must conserve stock, got %s", total)
	}

	// Merge the carved item back in full: the source drains and is
	// finalized. It holds no position, so no confirmation is needed.
	carved := split.NewLot.Items[0]
	mergeResult, err := workflow.ProcessMergeWorkflow(ctx, &workflow.MergeLotsInput{
		TargetLotId: lot.ID,
		Items: []workflow.MergeLotItemInput{
			{SourceItemId: carved.ID, Qty: carved.Qty},
		},
	})
	if err != nil {
		t.Fatalf("ProcessMergeWorkflow: %v", err)
	}
	target := mergeResult.Target
	if !target.Quantity.Equal(decimal.NewFromInt(1000)) {
		t.Fatalf("expected 1000 kg after merge, got %s", target.Quantity)
	}
	if len(mergeResult.EmptiedLots) != 1 || mergeResult.EmptiedLots[0] != split.NewLot.Code {
		t.Fatalf("expected %q to be reported emptied, got %v", split.NewLot.Code, mergeResult.EmptiedLots)
	}

	merged, err := models.GetLot(ctx, split.NewLot.ID)
	if err != nil {
		t.Fatalf("GetLot merged: %v", err)
	}
	if merged.Status != models.LotStatusExported {
		t.Fatalf("merged source must be emptied, got status %s", merged.Status)
	}
	if merged.MergedToCode == nil || *merged.MergedToCode != target.Code {
		t.Fatalf("merged source must point at the target, got %v", merged.MergedToCode)
	}

	// A positioned source only needs the release confirmation when the
	// merge would drain it; a partial merge leaves it active in place.
	other, err := models.CreateLot(ctx, &models.NewLot{
		Warehouse:    "WH1",
		PositionId:   &fx.store.ID,
		Supplier:     "ACME",
		ReceivedDate: time.Now(),
		Items: []models.NewLotItem{
			{ProductId: fx.pad.ID, Qty: decimal.NewFromInt(2), UnitName: "box"},
		},
	})
	if err != nil {
		t.Fatalf("CreateLot other: %v", err)
	}
	partial, err := workflow.ProcessMergeWorkflow(ctx, &workflow.MergeLotsInput{
		TargetLotId: lot.ID,
		Items: []workflow.MergeLotItemInput{
			{SourceItemId: other.Items[0].ID, Qty: decimal.NewFromInt(1)},
		},
	})
	if err != nil {
		t.Fatalf("partial merge: %v", err)
	}
	if len(partial.EmptiedLots) != 0 {
		t.Fatalf("partial merge must not empty the source, got %v", partial.EmptiedLots)
	}
	if !partial.Target.Quantity.Equal(decimal.NewFromInt(1020)) {
		t.Fatalf("expected 1020 kg after partial merge, got %s", partial.Target.Quantity)
	}
	other, err = models.GetLot(ctx, other.ID)
	if err != nil {
		t.Fatalf("GetLot other: %v", err)
	}
	if other.Status != models.LotStatusActive || !other.Quantity.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("partially merged source must stay active with 20 kg, got %s %s", other.Status, other.Quantity)
	}

	// Draining the remainder frees the position, so it must be confirmed.
	_, err = workflow.ProcessMergeWorkflow(ctx, &workflow.MergeLotsInput{
		TargetLotId: lot.ID,
		Items: []workflow.MergeLotItemInput{
			{SourceItemId: other.Items[0].ID, Qty: other.Items[0].Qty},
		},
	})
	if err != workflow.ErrPositionReleaseNotConfirmed {
		t.Fatalf("expected position release confirmation error, got %v", err)
	}
	full, err := workflow.ProcessMergeWorkflow(ctx, &workflow.MergeLotsInput{
		TargetLotId: lot.ID,
		Items: []workflow.MergeLotItemInput{
			{SourceItemId: other.Items[0].ID, Qty: other.Items[0].Qty},
		},
		ConfirmPositionRelease: utils.NewTrue(),
	})
	if err != nil {
		t.Fatalf("merge with confirmation: %v", err)
	}
	if !full.Target.Quantity.Equal(decimal.NewFromInt(1040)) {
		t.Fatalf("expected 1040 kg after full merge, got %s", full.Target.Quantity)
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lotledger-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("lotledger-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=lotledger_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}

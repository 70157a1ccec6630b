package substore

import (
	"testing"

	"chainstate/pkg/chainerr"
	"chainstate/pkg/domain"
)

func TestAccountsAddIsUpsert(t *testing.T) {
	accts := NewAccounts()
	var notes int
	accts.Store().OnChange(func([]domain.Account) { notes++ })

	if err := accts.Add(domain.Account{Address: "0xa", Balance: domain.NewAmount(1)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := accts.Add(domain.Account{Address: "0xb", Balance: domain.NewAmount(2)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := accts.Add(domain.Account{Address: "0xa", Balance: domain.NewAmount(9), Label: domain.StrPtr("deployer")}); err != nil {
		t.Fatalf("re-add: %v", err)
	}

	all := accts.All()
	if len(all) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(all))
	}
	if all[0].Address != "0xa" || !all[0].Balance.Equal(domain.NewAmount(9)) {
		t.Fatalf("expected replaced entry kept at first position, got %+v", all[0])
	}
	if all[0].Label == nil || *all[0].Label != "deployer" {
		t.Fatalf("expected label on replaced entry")
	}
	if notes != 3 {
		t.Fatalf("expected one notification per add, got %d", notes)
	}
}

func TestAccountsRejectNegativeBalance(t *testing.T) {
	accts := NewAccounts()
	err := accts.Add(domain.Account{Address: "0xa", Balance: domain.NewAmount(-1)})
	if !chainerr.Is(err, chainerr.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(accts.All()) != 0 {
		t.Fatalf("rejected account must not be stored")
	}

	_ = accts.Add(domain.Account{Address: "0xa", Balance: domain.NewAmount(5)})
	if err := accts.SetBalance("0xa", domain.NewAmount(-3)); !chainerr.Is(err, chainerr.CodeInvalidInput) {
		t.Fatalf("expected invalid input on negative update, got %v", err)
	}
	got, _ := accts.Get("0xa")
	if !got.Balance.Equal(domain.NewAmount(5)) {
		t.Fatalf("balance changed after rejected update: %s", got.Balance)
	}
}

func TestAccountsUpdateMissing(t *testing.T) {
	accts := NewAccounts()
	var notes int
	accts.Store().OnChange(func([]domain.Account) { notes++ })

	err := accts.SetBalance("0xmissing", domain.NewAmount(1))
	if !chainerr.Is(err, chainerr.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if notes != 0 {
		t.Fatalf("failed update must not notify")
	}
}

func TestAccountsRemove(t *testing.T) {
	accts := NewAccounts()
	_ = accts.SetAll([]domain.Account{
		{Address: "0xa", Balance: domain.NewAmount(1)},
		{Address: "0xb", Balance: domain.NewAmount(2)},
	})
	var notes int
	accts.Store().OnChange(func([]domain.Account) { notes++ })

	if accts.Remove("0xzz") {
		t.Fatalf("expected absent remove to report false")
	}
	if notes != 0 {
		t.Fatalf("absent remove must not notify")
	}
	if !accts.Remove("0xa") {
		t.Fatalf("expected remove to report true")
	}
	if notes != 1 {
		t.Fatalf("expected one notification, got %d", notes)
	}
	if _, ok := accts.Get("0xa"); ok {
		t.Fatalf("0xa still present")
	}
}

func TestAccountsSetAllCollapsesDuplicates(t *testing.T) {
	accts := NewAccounts()
	if err := accts.SetAll([]domain.Account{
		{Address: "0xa", Balance: domain.NewAmount(1)},
		{Address: "0xb", Balance: domain.NewAmount(2)},
		{Address: "0xa", Balance: domain.NewAmount(3)},
	}); err != nil {
		t.Fatalf("set all: %v", err)
	}
	all := accts.All()
	if len(all) != 2 || all[0].Address != "0xa" || !all[0].Balance.Equal(domain.NewAmount(3)) {
		t.Fatalf("unexpected collapse result: %+v", all)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	accts := NewAccounts()
	_ = accts.Add(domain.Account{Address: "0xa", Balance: domain.NewAmount(1)})
	all := accts.All()
	all[0].Address = "mutated"
	if _, ok := accts.Get("0xa"); !ok {
		t.Fatalf("caller mutation leaked into store")
	}
}

func TestDeploymentUpsertAndBalance(t *testing.T) {
	dep := NewDeployment()
	c := domain.DeployedContract{Address: "0xc", Name: "Token", Provenance: domain.ProvenanceCompiled}
	if err := dep.Add(c); err != nil {
		t.Fatalf("add: %v", err)
	}
	c.Name = "TokenV2"
	if err := dep.Add(c); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if len(dep.All()) != 1 {
		t.Fatalf("expected single contract after upsert")
	}
	if err := dep.SetBalance("0xc", domain.MustAmount("1000000000000000000000")); err != nil {
		t.Fatalf("set balance: %v", err)
	}
	if err := dep.SetProxies("0xc", []domain.Proxy{{Address: "0xp", Kind: 1}}); err != nil {
		t.Fatalf("set proxies: %v", err)
	}
	got, ok := dep.Get("0xc")
	if !ok || got.Name != "TokenV2" {
		t.Fatalf("unexpected contract %+v", got)
	}
	if got.Balance == nil || got.Balance.String() != "1000000000000000000000" {
		t.Fatalf("unexpected balance %v", got.Balance)
	}
	if len(got.Proxies) != 1 || got.Proxies[0].Address != "0xp" {
		t.Fatalf("unexpected proxies %+v", got.Proxies)
	}
	if err := dep.Add(domain.DeployedContract{}); !chainerr.Is(err, chainerr.CodeInvalidInput) {
		t.Fatalf("expected invalid input for empty address, got %v", err)
	}
}

func TestHistoryAppendOrder(t *testing.T) {
	h := NewHistory()
	var lens []int
	h.Store().OnChange(func(recs []domain.TransactionRecord) { lens = append(lens, len(recs)) })

	h.Append(domain.TransactionRecord{Kind: domain.OperationDeployment, Success: true, From: "0xa"})
	h.Append(domain.TransactionRecord{Kind: domain.OperationFunctionCall, Success: false, From: "0xa", Error: domain.StrPtr("revert")})

	all := h.All()
	if len(all) != 2 || all[0].Kind != domain.OperationDeployment || all[1].Kind != domain.OperationFunctionCall {
		t.Fatalf("unexpected history %+v", all)
	}
	if len(lens) != 2 || lens[0] != 1 || lens[1] != 2 {
		t.Fatalf("unexpected notification lengths %v", lens)
	}
	h.Clear()
	if h.Len() != 0 {
		t.Fatalf("expected empty history after clear")
	}
}

func TestCompilationDirtyLifecycle(t *testing.T) {
	c := NewCompilation()
	if !c.Snapshot().Dirty {
		t.Fatalf("fresh compilation must be dirty")
	}

	c.AddContract(domain.CompiledContract{FullyQualifiedName: "a.sol:A", Name: "A"})
	if !c.Snapshot().Dirty {
		t.Fatalf("partial update must not clear dirty")
	}

	c.Complete([]domain.CompiledContract{{FullyQualifiedName: "a.sol:A", Name: "A", IsDeployable: true}},
		[]domain.CompilationIssue{{Severity: domain.SeverityWarning, Message: "unused"}})
	snap := c.Snapshot()
	if snap.Dirty || len(snap.Contracts) != 1 || len(snap.Issues) != 1 {
		t.Fatalf("unexpected state after complete: %+v", snap)
	}

	c.MarkDirty()
	if !c.Snapshot().Dirty || len(c.Snapshot().Contracts) != 1 {
		t.Fatalf("mark dirty must keep artifacts")
	}

	c.BackendStopped()
	snap = c.Snapshot()
	if !snap.Dirty || len(snap.Contracts) != 0 || len(snap.Issues) != 0 {
		t.Fatalf("backend stop must clear artifacts: %+v", snap)
	}
}

func TestCompilationAddContractReplaces(t *testing.T) {
	c := NewCompilation()
	c.AddContract(domain.CompiledContract{FullyQualifiedName: "a.sol:A", Bytecode: "0x01"})
	c.AddContract(domain.CompiledContract{FullyQualifiedName: "b.sol:B"})
	c.AddContract(domain.CompiledContract{FullyQualifiedName: "a.sol:A", Bytecode: "0x02"})

	snap := c.Snapshot()
	if len(snap.Contracts) != 2 {
		t.Fatalf("expected 2 contracts, got %d", len(snap.Contracts))
	}
	got, ok := c.Contract("a.sol:A")
	if !ok || got.Bytecode != "0x02" {
		t.Fatalf("expected replaced bytecode, got %+v", got)
	}
	if _, ok := c.Contract("missing.sol:X"); ok {
		t.Fatalf("unexpected contract")
	}
}

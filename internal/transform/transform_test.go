package transform

import (
	"testing"
	"time"

	"github.com/hyperengineering/fieldbridge/internal/idmap"
	"github.com/hyperengineering/fieldbridge/internal/record"
	"github.com/hyperengineering/fieldbridge/internal/schema"
)

func workorderSchema(t *testing.T) schema.Schema {
	t.Helper()
	sch, err := schema.Builtin().Get("workorder")
	if err != nil {
		t.Fatalf("Get(workorder): %v", err)
	}
	return sch
}

func linkedMaps(t *testing.T) idmap.Maps {
	t.Helper()
	accounts := idmap.NewMap("account")
	if err := accounts.Add("acc-1", "EXT-ACC-1"); err != nil {
		t.Fatal(err)
	}
	contacts := idmap.NewMap("contact")
	if err := contacts.Add("con-1", "EXT-CON-1"); err != nil {
		t.Fatal(err)
	}
	return idmap.Maps{
		"account":          accounts,
		"contact":          contacts,
		"serviceterritory": idmap.NewMap("serviceterritory"),
	}
}

func TestForward_TranslatesFieldsEnumsAndReferences(t *testing.T) {
	sch := workorderSchema(t)
	maps := linkedMaps(t)

	ext := record.Record{
		"Subject":    "Replace condenser",
		"Status":     "In Progress",
		"Priority":   "High",
		"StartDate":  "2025-06-01T08:00:00Z",
		"TotalPrice": 450.0,
		"AccountId":  "EXT-ACC-1",
		"ContactId":  "EXT-CON-1",
	}

	var counters Counters
	local, skip, err := Forward(sch, ext, maps, &counters)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if skip != nil {
		t.Fatalf("unexpected skip: %s", skip)
	}

	if v, _ := local.GetString("subject"); v != "Replace condenser" {
		t.Errorf("subject = %q", v)
	}
	if v, _ := local.GetString("status"); v != "in_progress" {
		t.Errorf("status = %q, want translated enum", v)
	}
	if v, _ := local.GetString("priority"); v != "high" {
		t.Errorf("priority = %q", v)
	}
	if v, _ := local.GetString("account_id"); v != "acc-1" {
		t.Errorf("account_id = %q, want translated FK", v)
	}
	if v, _ := local.GetString("contact_id"); v != "con-1" {
		t.Errorf("contact_id = %q", v)
	}
	start, ok := local.GetTime("start_date")
	if !ok || !start.Equal(time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("start_date = %v, %v", start, ok)
	}
	if counters.Skipped != 0 || counters.EnumDefaults != 0 {
		t.Errorf("counters = %+v", counters)
	}

	// Absent optional fields stay unset, not null.
	if local.Has("description") {
		t.Error("absent optional field materialized")
	}
}

func TestForward_UnknownEnumFallsBackToDefault(t *testing.T) {
	sch := workorderSchema(t)
	ext := record.Record{
		"Subject":   "Job",
		"Status":    "Telepathically Resolved",
		"AccountId": "EXT-ACC-1",
	}

	var counters Counters
	local, skip, err := Forward(sch, ext, linkedMaps(t), &counters)
	if err != nil || skip != nil {
		t.Fatalf("Forward: err=%v skip=%v", err, skip)
	}

	if v, _ := local.GetString("status"); v != "new" {
		t.Errorf("status = %q, want schema default", v)
	}
	if counters.EnumDefaults != 1 {
		t.Errorf("EnumDefaults = %d, want 1", counters.EnumDefaults)
	}
}

func TestForward_UnresolvedRequiredReferenceSkips(t *testing.T) {
	sch := workorderSchema(t)
	ext := record.Record{
		"Subject":   "Orphan job",
		"AccountId": "EXT-ACC-MISSING",
	}

	var counters Counters
	local, skip, err := Forward(sch, ext, linkedMaps(t), &counters)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if local != nil {
		t.Error("skipped record still produced output")
	}
	if skip == nil {
		t.Fatal("expected skip for unresolved required reference")
	}
	if skip.Field != "AccountId" {
		t.Errorf("skip field = %q", skip.Field)
	}
	if counters.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", counters.Skipped)
	}
}

func TestForward_UnresolvedOptionalReferenceIsNull(t *testing.T) {
	sch := workorderSchema(t)
	ext := record.Record{
		"Subject":   "Job",
		"AccountId": "EXT-ACC-1",
		"ContactId": "EXT-CON-MISSING",
	}

	local, skip, err := Forward(sch, ext, linkedMaps(t), nil)
	if err != nil || skip != nil {
		t.Fatalf("Forward: err=%v skip=%v", err, skip)
	}

	// Unlinked optional FK must be explicitly null, never a wrong guess.
	if !local.IsNull("contact_id") {
		t.Error("unresolved optional reference is not null")
	}
}

func TestForward_MissingRequiredFieldSkips(t *testing.T) {
	sch := workorderSchema(t)
	ext := record.Record{"AccountId": "EXT-ACC-1"} // no Subject

	var counters Counters
	_, skip, err := Forward(sch, ext, linkedMaps(t), &counters)
	if err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if skip == nil || skip.Field != "Subject" {
		t.Fatalf("skip = %v, want Subject skip", skip)
	}
}

func TestForward_MalformedValueIsHardError(t *testing.T) {
	sch := workorderSchema(t)
	ext := record.Record{
		"Subject":   "Job",
		"AccountId": "EXT-ACC-1",
		"StartDate": "yesterday-ish",
	}

	_, skip, err := Forward(sch, ext, linkedMaps(t), nil)
	if err == nil {
		t.Fatal("malformed timestamp did not error")
	}
	if skip != nil {
		t.Error("hard failure also reported as skip")
	}
}

func TestReverse_OmitsUnsetAndKeepsExplicitNull(t *testing.T) {
	sch := workorderSchema(t)
	local := record.Record{
		"subject":    "Replace condenser",
		"status":     "completed",
		"account_id": "acc-1",
	}
	local.SetNull("description") // cleared locally, must clear externally

	var counters Counters
	ext, skip, err := Reverse(sch, local, linkedMaps(t), &counters)
	if err != nil || skip != nil {
		t.Fatalf("Reverse: err=%v skip=%v", err, skip)
	}

	if v, _ := ext.GetString("Status"); v != "Completed" {
		t.Errorf("Status = %q", v)
	}
	if v, _ := ext.GetString("AccountId"); v != "EXT-ACC-1" {
		t.Errorf("AccountId = %q", v)
	}
	if ext.Has("Priority") {
		t.Error("unset local field appeared in external record")
	}
	if !ext.IsNull("Description") {
		t.Error("explicitly cleared field not sent as null")
	}
}

func TestReverse_TimesUseCanonicalWireForm(t *testing.T) {
	sch := workorderSchema(t)
	local := record.Record{
		"subject":    "Job",
		"account_id": "acc-1",
		"start_date": time.Date(2025, 6, 1, 3, 30, 0, 0, time.FixedZone("PST", -8*3600)),
	}

	ext, _, err := Reverse(sch, local, linkedMaps(t), nil)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if v, _ := ext.GetString("StartDate"); v != "2025-06-01T11:30:00Z" {
		t.Errorf("StartDate = %q, want canonical UTC", v)
	}
}

func TestReverse_UnpushedRequiredParentSkips(t *testing.T) {
	sch := workorderSchema(t)
	local := record.Record{
		"subject":    "Job",
		"account_id": "acc-unpushed",
	}

	var counters Counters
	_, skip, err := Reverse(sch, local, linkedMaps(t), &counters)
	if err != nil {
		t.Fatalf("Reverse: %v", err)
	}
	if skip == nil {
		t.Fatal("expected skip for unpushed required parent")
	}
	if counters.Skipped != 1 {
		t.Errorf("Skipped = %d", counters.Skipped)
	}
}

func TestReverse_UnlinkedOptionalReferenceOmitted(t *testing.T) {
	sch := workorderSchema(t)
	local := record.Record{
		"subject":    "Job",
		"account_id": "acc-1",
		"contact_id": "con-unpushed",
	}

	ext, skip, err := Reverse(sch, local, linkedMaps(t), nil)
	if err != nil || skip != nil {
		t.Fatalf("Reverse: err=%v skip=%v", err, skip)
	}
	// A local ID must never leak to the platform.
	if ext.Has("ContactId") {
		t.Error("unlinked optional reference was sent")
	}
}

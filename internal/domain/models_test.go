package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (ChatSession{}).TableName() != "chat_sessions" {
		t.Fatalf("ChatSession.TableName() = %q", (ChatSession{}).TableName())
	}
	if (LocalState{}).TableName() != "local_state" {
		t.Fatalf("LocalState.TableName() = %q", (LocalState{}).TableName())
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q", (Idempotency{}).TableName())
	}
}

func TestChatSession_HistoryRoundTripsThroughJSONColumn(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&ChatSession{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	hist := []ChatTurn{
		{Role: RoleUser, Parts: []string{"my arm itches"}},
		{Role: RoleModel, Parts: []string{`{"text":"Since when?"}`}},
	}
	s := &ChatSession{UserID: "u1", Language: "en", History: hist}
	if err := db.Create(s).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got ChatSession
	if err := db.First(&got, "user_id = ?", "u1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if !reflect.DeepEqual(got.History, hist) || got.Language != "en" || got.Terminal {
		t.Fatalf("unexpected row: %+v", got)
	}

	// Primary key is the user id.
	dup := &ChatSession{UserID: "u1", Language: "de", History: nil}
	if err := db.Create(dup).Error; err == nil {
		t.Fatalf("expected primary key violation for a second session of u1")
	}
}

func TestLocalState_Migrates(t *testing.T) {
	db := newTestDB(t)
	if err := db.AutoMigrate(&LocalState{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	row := &LocalState{Key: "queue", Value: "[]", UpdatedAt: time.Now().UTC()}
	if err := db.Create(row).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var got LocalState
	if err := db.First(&got, "key = ?", "queue").Error; err != nil || got.Value != "[]" {
		t.Fatalf("readback: %+v err=%v", got, err)
	}
}

func TestTriageResult_JSONOmitsAbsentOptionals(t *testing.T) {
	b, err := json.Marshal(TriageResult{Conclusion: ConclusionSerious, Explanation: "Spreading redness"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"conclusion":"SERIOUS","explanation":"Spreading redness"}` {
		t.Fatalf("unexpected json: %s", b)
	}
}

func TestTriageResult_Valid(t *testing.T) {
	cases := []struct {
		r    TriageResult
		want bool
	}{
		{TriageResult{Conclusion: "MILD", Explanation: "x"}, true},
		{TriageResult{Conclusion: "SERIOUS", Explanation: "x"}, true},
		{TriageResult{Conclusion: "mild", Explanation: "x"}, false},
		{TriageResult{Conclusion: "MILD"}, false},
		{TriageResult{}, false},
	}
	for _, tc := range cases {
		if got := tc.r.Valid(); got != tc.want {
			t.Fatalf("%+v.Valid() = %v; want %v", tc.r, got, tc.want)
		}
	}
}

func TestChatReply_JSONShape(t *testing.T) {
	var r ChatReply
	if err := json.Unmarshal([]byte(`{"text":"Does it hurt?","suggestions":["Yes","No"]}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.Text != "Does it hurt?" || len(r.Suggestions) != 2 || r.TriageResult != nil {
		t.Fatalf("unexpected reply: %+v", r)
	}
	if err := json.Unmarshal([]byte(`{"triageResult":{"conclusion":"MILD","explanation":"ok","selfCareTips":["rest"]}}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if r.TriageResult == nil || r.TriageResult.Conclusion != "MILD" || r.TriageResult.SelfCareTips[0] != "rest" {
		t.Fatalf("unexpected triage reply: %+v", r.TriageResult)
	}
}

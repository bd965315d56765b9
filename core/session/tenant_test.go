package session

import (
	"encoding/json"
	"testing"

	"github.com/shule-app/shule/identity"
)

func TestExtractTenant(t *testing.T) {
	tests := []struct {
		name      string
		principal *identity.Principal
		want      TenantID
		wantOK    bool
	}{
		{name: "nil principal"},
		{name: "nil metadata", principal: &identity.Principal{ID: "u1"}},
		{name: "empty metadata", principal: principalWith(map[string]interface{}{})},
		{name: "snake case int", principal: principalWith(map[string]interface{}{"school_id": 7}), want: 7, wantOK: true},
		{name: "camel case int", principal: principalWith(map[string]interface{}{"schoolId": 3}), want: 3, wantOK: true},
		{name: "snake case wins over camel", principal: principalWith(map[string]interface{}{"school_id": 7, "schoolId": 3}), want: 7, wantOK: true},
		{name: "integer-formatted string", principal: principalWith(map[string]interface{}{"school_id": "7"}), want: 7, wantOK: true},
		{name: "padded string", principal: principalWith(map[string]interface{}{"school_id": " 42 "}), want: 42, wantOK: true},
		{name: "json number", principal: principalWith(map[string]interface{}{"school_id": json.Number("11")}), want: 11, wantOK: true},
		{name: "whole float", principal: principalWith(map[string]interface{}{"school_id": float64(5)}), want: 5, wantOK: true},
		{name: "fractional float", principal: principalWith(map[string]interface{}{"school_id": 5.5})},
		{name: "garbage string", principal: principalWith(map[string]interface{}{"school_id": "first"})},
		{name: "bool value", principal: principalWith(map[string]interface{}{"school_id": true})},
		{name: "zero id", principal: principalWith(map[string]interface{}{"school_id": 0})},
		{name: "negative id", principal: principalWith(map[string]interface{}{"school_id": -3})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractTenant(tt.principal)
			if ok != tt.wantOK {
				t.Fatalf("ExtractTenant() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractTenant() = %v, want %v", got, tt.want)
			}
		})
	}
}

// The single most important invariant: a principal without a school id must
// never resolve to a numeric default.
func TestExtractTenantNeverDefaults(t *testing.T) {
	bags := []map[string]interface{}{
		nil,
		{},
		{"schoolID": 9},        // unaccepted spelling
		{"school": 9},          // unaccepted key
		{"school_id": ""},      // empty string
		{"school_id": nil},     // explicit null
		{"school_id": "one"},   // non-numeric
		{"school_id": []int{}}, // wrong type
	}
	for _, bag := range bags {
		if id, ok := ExtractTenant(principalWith(bag)); ok || id != 0 {
			t.Errorf("ExtractTenant(%v) = (%v, %v), want (0, false)", bag, id, ok)
		}
	}
}

func principalWith(metadata map[string]interface{}) *identity.Principal {
	return &identity.Principal{ID: "u1", Email: "u1@shule.test", Metadata: metadata}
}

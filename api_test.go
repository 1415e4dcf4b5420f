package main

import "testing"

func ptr[T any](v T) *T { return &v }

func TestValidateSettingsEnforcesCommandRanges(t *testing.T) {
	tests := []struct {
		name    string
		req     SettingsUpdateRequest
		wantErr bool
	}{
		{"empty update", SettingsUpdateRequest{}, false},
		{"meter in range", SettingsUpdateRequest{
			MeterAttackMs:     ptr(int64(100)),
			MeterQuietBelowDB: ptr(-30.0),
		}, false},
		{"attack too fast", SettingsUpdateRequest{MeterAttackMs: ptr(int64(1))}, true},
		{"hold too short", SettingsUpdateRequest{MeterHoldMs: ptr(int64(50))}, true},
		{"quiet boundary above zero", SettingsUpdateRequest{MeterQuietBelowDB: ptr(5.0)}, true},
		{"silence threshold above ceiling", SettingsUpdateRequest{SilenceThreshold: ptr(10.0)}, true},
		{"silence duration too short", SettingsUpdateRequest{SilenceDurationMs: ptr(int64(100))}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := validateSettings(&tt.req)
			if (verr != nil) != tt.wantErr {
				t.Errorf("validateSettings() = %+v, wantErr %v", verr, tt.wantErr)
			}
		})
	}
}

func TestValidateSettingsReportsJSONFieldNames(t *testing.T) {
	verr := validateSettings(&SettingsUpdateRequest{MeterAttackMs: ptr(int64(1))})
	if verr == nil || len(verr.Errors) == 0 {
		t.Fatal("expected a validation error for attack_ms = 1")
	}
	if verr.Errors[0].Field != "attack_ms" {
		t.Errorf("Field = %q, want the JSON tag name attack_ms", verr.Errors[0].Field)
	}
}

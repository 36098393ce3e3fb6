package auth

import (
	"testing"
	"time"
)

func TestIssueAndParse(t *testing.T) {
	pair, err := Issue("cam-1", RoleDevice, "facetrack", "secret", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := Parse(pair.AccessToken, "secret", "facetrack")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.DeviceID != "cam-1" || claims.Role != RoleDevice {
		t.Errorf("claims = %+v, want device cam-1 role %q", claims, RoleDevice)
	}
	if claims.Subject != "cam-1" {
		t.Errorf("subject = %q, want cam-1", claims.Subject)
	}
}

func TestParseRejectsBadTokens(t *testing.T) {
	pair, err := Issue("cam-1", RoleDevice, "facetrack", "secret", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := Parse(pair.AccessToken, "wrong-key", "facetrack"); err == nil {
		t.Error("wrong signing key should fail")
	}
	if _, err := Parse(pair.AccessToken, "secret", "other-issuer"); err == nil {
		t.Error("issuer mismatch should fail")
	}
	if _, err := Parse("not-a-token", "secret", "facetrack"); err == nil {
		t.Error("garbage token should fail")
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	pair, err := Issue("cam-1", RoleDevice, "facetrack", "secret", -time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "facetrack"); err == nil {
		t.Error("expired token should fail")
	}
}

func TestParseRejectsEmptyDeviceID(t *testing.T) {
	pair, err := Issue("", RoleDevice, "facetrack", "secret", 15*time.Minute, 24*time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := Parse(pair.AccessToken, "secret", "facetrack"); err == nil {
		t.Error("token without a device id should fail")
	}
}

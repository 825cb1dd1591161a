package domain

import "testing"

func TestParseModality(t *testing.T) {
	cases := []struct {
		mimeType string
		want     Modality
		ok       bool
	}{
		{"image/png", ModalityImage, true},
		{"image/jpeg", ModalityImage, true},
		{"video/mp4", ModalityVideo, true},
		{"application/pdf", ModalityPDF, true},
		{"Application/PDF", ModalityPDF, true},
		{"application/pdf; charset=binary", ModalityPDF, true},
		{"  image/png  ", ModalityImage, true},
		{"text/plain", "", false},
		{"application/octet-stream", "", false},
		{"", "", false},
	}

	for _, tc := range cases {
		got, ok := ParseModality(tc.mimeType)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseModality(%q) = (%q, %v), want (%q, %v)", tc.mimeType, got, ok, tc.want, tc.ok)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobPending.Terminal() || JobProcessing.Terminal() {
		t.Fatalf("pending and processing must not be terminal")
	}
	if !JobCompleted.Terminal() || !JobFailed.Terminal() {
		t.Fatalf("completed and failed must be terminal")
	}
}

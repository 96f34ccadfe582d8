package imagehost

import "testing"

func TestFileName(t *testing.T) {
	tests := []struct {
		name      string
		skuID     int64
		sequence  int
		sourceURL string
		want      string
	}{
		{
			name:      "plain jpg",
			skuID:     42,
			sequence:  1,
			sourceURL: "https://cdn.legacy.com/img/produto.jpg",
			want:      "42_1.jpg",
		},
		{
			name:      "jpeg normalized to jpg",
			skuID:     42,
			sequence:  2,
			sourceURL: "https://cdn.legacy.com/img/produto.JPEG",
			want:      "42_2.jpg",
		},
		{
			name:      "resolution suffix after extension",
			skuID:     7,
			sequence:  1,
			sourceURL: "https://cdn.legacy.com/img/produto.jpg-1200Wx1200H",
			want:      "7_1.jpg",
		},
		{
			name:      "lowercase resolution suffix",
			skuID:     7,
			sequence:  3,
			sourceURL: "https://cdn.legacy.com/img/produto.png-800x600",
			want:      "7_3.png",
		},
		{
			name:      "png preserved",
			skuID:     9,
			sequence:  1,
			sourceURL: "https://cdn.legacy.com/img/logo.png",
			want:      "9_1.png",
		},
		{
			name:      "webp preserved",
			skuID:     9,
			sequence:  2,
			sourceURL: "https://cdn.legacy.com/img/foto.webp",
			want:      "9_2.webp",
		},
		{
			name:      "query string ignored",
			skuID:     9,
			sequence:  3,
			sourceURL: "https://cdn.legacy.com/img/foto.png?v=3&w=1200",
			want:      "9_3.png",
		},
		{
			name:      "unknown extension falls back to jpg",
			skuID:     11,
			sequence:  1,
			sourceURL: "https://cdn.legacy.com/img/foto.ashx",
			want:      "11_1.jpg",
		},
		{
			name:      "no extension falls back to jpg",
			skuID:     11,
			sequence:  2,
			sourceURL: "https://cdn.legacy.com/img/12345",
			want:      "11_2.jpg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.skuID, tt.sequence, tt.sourceURL); got != tt.want {
				t.Fatalf("FileName(%d, %d, %q) = %q, want %q", tt.skuID, tt.sequence, tt.sourceURL, got, tt.want)
			}
		})
	}
}

func TestContentTypeFor(t *testing.T) {
	if got := contentTypeFor("42_1.png"); got != "image/png" {
		t.Fatalf("contentTypeFor png = %q", got)
	}
	if got := contentTypeFor("42_1.jpg"); got != "image/jpeg" {
		t.Fatalf("contentTypeFor jpg = %q", got)
	}
}

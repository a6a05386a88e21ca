package models

import (
	"fmt"
	"sort"
)

// Catalog maps a ticket category to its allowed sub-categories.
type Catalog map[string][]string

// DefaultCatalog is used when the config file does not define categories.
var DefaultCatalog = Catalog{
	"akademik":      {"nilai", "jadwal_kuliah", "krs", "dosen", "ujian"},
	"fasilitas":     {"ruang_kelas", "laboratorium", "perpustakaan", "toilet", "parkir"},
	"keuangan":      {"ukt", "beasiswa", "pembayaran"},
	"layanan_it":    {"wifi", "akun_sso", "lms", "email_kampus"},
	"kemahasiswaan": {"organisasi", "kesehatan", "perundungan", "lainnya"},
}

func (c Catalog) Validate(category, sub string) error {
	subs, ok := c[category]
	if !ok {
		return fmt.Errorf("unknown category %q", category)
	}
	for _, s := range subs {
		if s == sub {
			return nil
		}
	}
	return fmt.Errorf("sub-category %q does not belong to %q", sub, category)
}

// Categories returns the category names in stable order.
func (c Catalog) Categories() []string {
	out := make([]string, 0, len(c))
	for k := range c {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

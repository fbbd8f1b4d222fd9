package textnorm

import (
	"strings"
	"testing"
)

var sampleTexts = map[string]string{
	"short":  "Adquisición de Artículos de Papelería",
	"ascii":  "CONSTRUCTORA DEL NORTE SA DE CV",
	"medium": "Contratación del servicio integral de limpieza, jardinería y fumigación para las unidades médicas de la delegación",
	"long":   strings.Repeat("Suministro e instalación de equipo médico y electromecánico para hospitales de segundo nivel. ", 30),
}

func BenchmarkFold(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Fold(text)
			}
		})
	}
}

func BenchmarkWords(b *testing.B) {
	for name, text := range sampleTexts {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				_ = Words(text)
			}
		})
	}
}

func BenchmarkSupplierKey(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		_ = SupplierKey("Constructora y Pavimentadora del Bajío, S.A. de C.V.")
	}
}

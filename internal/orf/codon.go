// Package orf reconstructs reference and alternative coding sequences and
// classifies ORF disruption and NMD likelihood for splicing events.
package orf

import "strings"

// Standard genetic code: DNA codon to amino acid (single letter).
var codonTable = map[string]byte{
	"TTT": 'F', "TTC": 'F', "TTA": 'L', "TTG": 'L',
	"TCT": 'S', "TCC": 'S', "TCA": 'S', "TCG": 'S',
	"TAT": 'Y', "TAC": 'Y', "TAA": '*', "TAG": '*',
	"TGT": 'C', "TGC": 'C', "TGA": '*', "TGG": 'W',

	"CTT": 'L', "CTC": 'L', "CTA": 'L', "CTG": 'L',
	"CCT": 'P', "CCC": 'P', "CCA": 'P', "CCG": 'P',
	"CAT": 'H', "CAC": 'H', "CAA": 'Q', "CAG": 'Q',
	"CGT": 'R', "CGC": 'R', "CGA": 'R', "CGG": 'R',

	"ATT": 'I', "ATC": 'I', "ATA": 'I', "ATG": 'M',
	"ACT": 'T', "ACC": 'T', "ACA": 'T', "ACG": 'T',
	"AAT": 'N', "AAC": 'N', "AAA": 'K', "AAG": 'K',
	"AGT": 'S', "AGC": 'S', "AGA": 'R', "AGG": 'R',

	"GTT": 'V', "GTC": 'V', "GTA": 'V', "GTG": 'V',
	"GCT": 'A', "GCC": 'A', "GCA": 'A', "GCG": 'A',
	"GAT": 'D', "GAC": 'D', "GAA": 'E', "GAG": 'E',
	"GGT": 'G', "GGC": 'G', "GGA": 'G', "GGG": 'G',
}

// IUPAC nucleotide codes and the bases they stand for.
var iupac = map[byte]string{
	'A': "A", 'C': "C", 'G': "G", 'T': "T", 'U': "T",
	'R': "AG", 'Y': "CT", 'S': "CG", 'W': "AT", 'K': "GT", 'M': "AC",
	'B': "CGT", 'D': "AGT", 'H': "ACT", 'V': "ACG", 'N': "ACGT",
}

// StopSymbol marks a stop codon in a full translation.
const StopSymbol = '*'

// TranslateCodon translates a DNA codon to its amino acid, ignoring case.
// Ambiguous codons resolve to a residue only when every base they stand for
// codes for it (CTN -> L, TAR -> *); otherwise, and for unknown bases, 'X'.
func TranslateCodon(codon string) byte {
	if len(codon) != 3 {
		return 'X'
	}
	if aa, ok := codonTable[codon]; ok {
		return aa
	}
	codon = strings.ToUpper(codon)
	if aa, ok := codonTable[codon]; ok {
		return aa
	}
	return resolveAmbiguous(codon)
}

func resolveAmbiguous(codon string) byte {
	b1, ok1 := iupac[codon[0]]
	b2, ok2 := iupac[codon[1]]
	b3, ok3 := iupac[codon[2]]
	if !ok1 || !ok2 || !ok3 {
		return 'X'
	}
	var aa byte
	buf := make([]byte, 3)
	for i := 0; i < len(b1); i++ {
		for j := 0; j < len(b2); j++ {
			for k := 0; k < len(b3); k++ {
				buf[0], buf[1], buf[2] = b1[i], b2[j], b3[k]
				got := codonTable[string(buf)]
				if aa != 0 && got != aa {
					return 'X'
				}
				aa = got
			}
		}
	}
	return aa
}

// IsStopCodon returns true if the codon is a stop codon (TAA, TAG, TGA).
func IsStopCodon(codon string) bool {
	return TranslateCodon(codon) == StopSymbol
}

// ReverseComplement returns the reverse complement of a DNA sequence.
func ReverseComplement(seq string) string {
	n := len(seq)
	result := make([]byte, n)
	for i := 0; i < n; i++ {
		result[i] = Complement(seq[n-1-i])
	}
	return string(result)
}

// Complement returns the complement of a single base, preserving case.
// IUPAC ambiguity codes map to their complementary code; anything else to N.
func Complement(base byte) byte {
	switch base {
	case 'A':
		return 'T'
	case 'T', 'U':
		return 'A'
	case 'G':
		return 'C'
	case 'C':
		return 'G'
	case 'R':
		return 'Y'
	case 'Y':
		return 'R'
	case 'K':
		return 'M'
	case 'M':
		return 'K'
	case 'B':
		return 'V'
	case 'V':
		return 'B'
	case 'D':
		return 'H'
	case 'H':
		return 'D'
	case 'S', 'W', 'N':
		return base
	}
	if 'a' <= base && base <= 'z' {
		return Complement(base-'a'+'A') - 'A' + 'a'
	}
	return 'N'
}

// TranslateFull translates every complete codon of seq in frame 0, keeping
// stop symbols. A trailing partial codon is ignored.
func TranslateFull(seq string) string {
	n := (len(seq) / 3) * 3

	var result strings.Builder
	result.Grow(n / 3)

	for i := 0; i < n; i += 3 {
		result.WriteByte(TranslateCodon(seq[i : i+3]))
	}

	return result.String()
}

// Translate translates seq in frame 0 up to, and excluding, the first stop codon.
func Translate(seq string) string {
	n := (len(seq) / 3) * 3

	var result strings.Builder
	result.Grow(n / 3)

	for i := 0; i < n; i += 3 {
		aa := TranslateCodon(seq[i : i+3])
		if aa == StopSymbol {
			break
		}
		result.WriteByte(aa)
	}

	return result.String()
}

package utils

import (
	"regexp"
	"strings"
	"unicode"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func ValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// NormalizeEmail trims and lowercases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Digits strips everything but 0-9.
func Digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// ValidCPF checks length and both check digits of a Brazilian CPF.
// Punctuation is ignored.
func ValidCPF(cpf string) bool {
	d := Digits(cpf)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == 11 {
		return false
	}
	return cpfDigit(d[:9], 10) == d[9] && cpfDigit(d[:10], 11) == d[10]
}

func cpfDigit(prefix string, weight int) byte {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * (weight - i)
	}
	digit := 11 - sum%11
	if digit >= 10 {
		digit = 0
	}
	return byte('0' + digit)
}

// FormatCPF renders the digits of cpf as 000.000.000-00.
func FormatCPF(cpf string) string {
	d := Digits(cpf)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	}
	if len(d) > 11 {
		d = d[:11]
	}
	return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
}

// PasswordProblems returns the rules pw breaks, empty when it is acceptable.
func PasswordProblems(pw string) []string {
	var problems []string
	if len(pw) < 8 {
		problems = append(problems, "password must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		problems = append(problems, "password must contain an uppercase letter")
	}
	if !lower {
		problems = append(problems, "password must contain a lowercase letter")
	}
	if !digit {
		problems = append(problems, "password must contain a number")
	}
	return problems
}

var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// ValidCNPJ checks length and both check digits of a Brazilian CNPJ.
func ValidCNPJ(cnpj string) bool {
	d := Digits(cnpj)
	if len(d) != 14 || strings.Count(d, d[:1]) == 14 {
		return false
	}
	return cnpjDigit(d[:12], cnpjWeights1) == d[12] && cnpjDigit(d[:13], cnpjWeights2) == d[13]
}

func cnpjDigit(prefix string, weights []int) byte {
	sum := 0
	for i := 0; i < len(prefix); i++ {
		sum += int(prefix[i]-'0') * weights[i]
	}
	r := sum % 11
	if r < 2 {
		return '0'
	}
	return byte('0' + 11 - r)
}

// ValidDocument accepts either a CPF or a CNPJ.
func ValidDocument(doc string) bool {
	return ValidCPF(doc) || ValidCNPJ(doc)
}

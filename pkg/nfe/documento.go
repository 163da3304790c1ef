package nfe

import (
	"fmt"
	"unicode"
)

// pesos para el primer y segundo dígito verificador del CNPJ (Receita Federal).
var (
	cnpjWeights1 = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// OnlyDigits elimina todo lo que no sea dígito ("11.222.333/0001-81" -> "11222333000181").
func OnlyDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if unicode.IsDigit(r) && r < 128 {
			out = append(out, r)
		}
	}
	return string(out)
}

// ValidateCNPJ valida longitud y los dos dígitos verificadores (módulo 11) de un CNPJ.
func ValidateCNPJ(cnpj string) error {
	digits := OnlyDigits(cnpj)
	if len(digits) != 14 {
		return fmt.Errorf("nfe: CNPJ debe tener 14 dígitos, se encontraron %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("nfe: CNPJ inválido")
	}
	if d := checkDigit(digits[:12], cnpjWeights1); d != digits[12] {
		return fmt.Errorf("nfe: primer dígito verificador del CNPJ inválido: esperado %c, recibido %c", d, digits[12])
	}
	if d := checkDigit(digits[:13], cnpjWeights2); d != digits[13] {
		return fmt.Errorf("nfe: segundo dígito verificador del CNPJ inválido: esperado %c, recibido %c", d, digits[13])
	}
	return nil
}

// ValidateCPF valida longitud y dígitos verificadores de un CPF.
func ValidateCPF(cpf string) error {
	digits := OnlyDigits(cpf)
	if len(digits) != 11 {
		return fmt.Errorf("nfe: CPF debe tener 11 dígitos, se encontraron %d", len(digits))
	}
	if allSame(digits) {
		return fmt.Errorf("nfe: CPF inválido")
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	if checkDigit(digits[:9], w1) != digits[9] || checkDigit(digits[:10], w2) != digits[10] {
		return fmt.Errorf("nfe: dígitos verificadores del CPF inválidos")
	}
	return nil
}

func checkDigit(base string, weights []int) byte {
	var sum int
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weights[i]
	}
	rest := sum % 11
	if rest < 2 {
		return '0'
	}
	return byte('0' + (11 - rest))
}

func allSame(s string) bool {
	for i := 1; i < len(s); i++ {
		if s[i] != s[0] {
			return false
		}
	}
	return true
}

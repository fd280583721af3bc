// Package test holds fixtures shared by tests across packages.
package test

import "math/big"

const (
	primeP = "D08769E92F80F7FDFB85EC02AFFDAED0FDE2782070757F191DCDC4D108110AC1E31C07FC253B5F7B91C5D9F203AA0572D3F2062A3D2904C535C6ACCA7D5674E1C2640720E762C72B66931F483C2D910908CF02EA6723A0CBBB1016CA696C38FEAC59B31E40584C8141889A11F7A38F5B17811D11F42CD15B8470F11C6183802B"
	primeQ = "C21239C3484FC3C8409F40A9A22FABFFE26CA10C27506E3E017C2EC8C4B98D7A6D30DED0686869884BE9BAD27F5241B7313F73D19E9E4B384FABF9554B5BB4D517CBAC0268420C63D545612C9ADABEEDF20F94244E7F8F2080B0C675AC98D97C580D43375F999B1AC127EC580B89B2D302EF33DD5FD8474A241B0398F6088CA7"
	otherP = "CEC41BA4C13D516CAC598B223E6D9BE035690560D1D368380AE7E990FFC322E7451CB95100CAE64447917923391FFDF82DD3D12741DE1BCB054A89D6C37C6358C45C9F910029B89456C7681DC426F539787F6ACAF0C2127BAE03B3D520F2A3D08CEBB015F275B520AC000C1B2A6A5B11E326391803A63896E0E2927A2B7EBDF9"
	otherQ = "FEF2B1966E5C31BD3F61EC19A46AAF6AF8BF922AD7F4BFC152BDD6D893052A443079FFA36E6EE1FACAB0F9C1F5F154232A109E7FECB13C6BEB1767340FCCCF2C628B60703950C89B11B7550992B78EC01154C4607FC2318363D05829A2724E790F9890F027CC9E74F63604EAE36E6EB2C174588CB083DE3CA845E0D865877FEF"
)

// PaillierPrimes returns two fixed 1024-bit primes whose product is a valid
// 2048-bit Paillier modulus. Generating fresh keys in every test is too slow.
func PaillierPrimes() (p, q *big.Int) {
	p, _ = new(big.Int).SetString(primeP, 16)
	q, _ = new(big.Int).SetString(primeQ, 16)
	return p, q
}

// OtherPaillierPrimes returns a second fixed pair, for tests needing two distinct keys.
func OtherPaillierPrimes() (p, q *big.Int) {
	p, _ = new(big.Int).SetString(otherP, 16)
	q, _ = new(big.Int).SetString(otherQ, 16)
	return p, q
}

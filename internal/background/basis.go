// Package background models the uneven illumination of a plate photograph
// as a smooth bivariate polynomial and removes it.
//
// A Model is produced once by Fit and is immutable afterwards; Surface and At
// evaluate it without touching the training image.
package background

// Terms is the number of non-constant monomials in the basis. The constant
// term is carried separately as the model intercept.
const Terms = 14

// Degree is the highest total degree of the polynomial basis.
const Degree = 4

// Basis returns every bivariate monomial of total degree 1 through 4, ordered
// by degree and then by descending power of x:
//
//	x, y, x², xy, y², x³, x²y, xy², y³, x⁴, x³y, x²y², xy³, y⁴
func Basis(x, y float64) [Terms]float64 {
	x2, y2 := x*x, y*y
	x3, y3 := x2*x, y2*y
	return [Terms]float64{
		x, y,
		x2, x * y, y2,
		x3, x2 * y, x * y2, y3,
		x3 * x, x3 * y, x2 * y2, x * y3, y3 * y,
	}
}

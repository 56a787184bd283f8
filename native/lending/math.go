package lending

import "github.com/holiman/uint256"

// Arithmetic helpers for the accounting core. Every multiply widens into a
// 256-bit intermediate before dividing back down, and every result is checked
// against the width of its destination. Overflow surfaces as ErrMathOverflow
// rather than wrapping.

// indexBits bounds cumulative interest indices to 128 bits, matching the
// widened integer type used for index storage.
const indexBits = 128

func checkedAdd(a, b uint64) (uint64, error) {
	sum := a + b
	if sum < a {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

func checkedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

func checkedMul(a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	product := a * b
	if product/a != b {
		return 0, ErrMathOverflow
	}
	return product, nil
}

// mulDiv computes a*b/den with floor rounding.
func mulDiv(a, b, den uint64) (uint64, error) {
	if den == 0 {
		return 0, ErrMathOverflow
	}
	product := new(uint256.Int).Mul(
		new(uint256.Int).SetUint64(a),
		new(uint256.Int).SetUint64(b),
	)
	product.Div(product, new(uint256.Int).SetUint64(den))
	if !product.IsUint64() {
		return 0, ErrMathOverflow
	}
	return product.Uint64(), nil
}

// unitIndex returns a cumulative index representing exactly 1.0.
func unitIndex() *uint256.Int {
	return new(uint256.Int).SetUint64(Scale)
}

// indexMul scales a cumulative index by a Scale-scaled factor.
func indexMul(index *uint256.Int, factor uint64) (*uint256.Int, error) {
	if index == nil || index.IsZero() {
		return nil, ErrMathOverflow
	}
	result := new(uint256.Int).Mul(index, new(uint256.Int).SetUint64(factor))
	result.Div(result, new(uint256.Int).SetUint64(Scale))
	if result.BitLen() > indexBits {
		return nil, ErrMathOverflow
	}
	return result, nil
}

// scaleByIndexRatio computes amount*num/den where num and den are cumulative
// indices. Used for debt scaling and aggregate index application.
func scaleByIndexRatio(amount uint64, num, den *uint256.Int) (uint64, error) {
	if num == nil || den == nil || den.IsZero() {
		return 0, ErrMathOverflow
	}
	result := new(uint256.Int).Mul(new(uint256.Int).SetUint64(amount), num)
	result.Div(result, den)
	if !result.IsUint64() {
		return 0, ErrMathOverflow
	}
	return result.Uint64(), nil
}

// mulDivBig computes a*b/den where a is a 256-bit value and the result stays
// 256-bit. den must be non-zero.
func mulDivBig(a *uint256.Int, b, den uint64) (*uint256.Int, error) {
	if a == nil || den == 0 {
		return nil, ErrMathOverflow
	}
	result := new(uint256.Int).Mul(a, new(uint256.Int).SetUint64(b))
	result.Div(result, new(uint256.Int).SetUint64(den))
	return result, nil
}

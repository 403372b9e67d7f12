package space

// Odometer counts through a mixed-radix number. Digit 0 is the most
// significant; the last digit turns fastest.
type Odometer struct {
	bases  []int
	digits []int
}

// NewOdometer starts at all zeros. Every base must be positive.
func NewOdometer(bases []int) *Odometer {
	for _, b := range bases {
		if b <= 0 {
			panic("space: odometer base must be positive")
		}
	}
	return &Odometer{
		bases:  append([]int(nil), bases...),
		digits: make([]int, len(bases)),
	}
}

// Digits returns the current reading. The slice is owned by the odometer.
func (o *Odometer) Digits() []int { return o.digits }

// Next advances by one with carry. It returns false, leaving all digits at
// zero, once the reading wraps past the last combination.
func (o *Odometer) Next() bool {
	for i := len(o.digits) - 1; i >= 0; i-- {
		o.digits[i]++
		if o.digits[i] < o.bases[i] {
			return true
		}
		o.digits[i] = 0
	}
	return false
}

package transform

import "math"

// Closed-form band-rotation coefficients, ported from the Kostelec/Rose
// recurrence used to build spherical-harmonic rotation matrices from a 3x3
// rotation matrix.
var (
	kSqrt03_02 = math.Sqrt(3.0 / 2.0)
	kSqrt01_03 = math.Sqrt(1.0 / 3.0)
	kSqrt02_03 = math.Sqrt(2.0 / 3.0)
	kSqrt04_03 = math.Sqrt(4.0 / 3.0)
	kSqrt01_04 = math.Sqrt(1.0 / 4.0)
	kSqrt03_04 = math.Sqrt(3.0 / 4.0)
	kSqrt01_05 = math.Sqrt(1.0 / 5.0)
	kSqrt03_05 = math.Sqrt(3.0 / 5.0)
	kSqrt06_05 = math.Sqrt(6.0 / 5.0)
	kSqrt08_05 = math.Sqrt(8.0 / 5.0)
	kSqrt09_05 = math.Sqrt(9.0 / 5.0)
	kSqrt01_06 = math.Sqrt(1.0 / 6.0)
	kSqrt05_06 = math.Sqrt(5.0 / 6.0)
	kSqrt03_08 = math.Sqrt(3.0 / 8.0)
	kSqrt05_08 = math.Sqrt(5.0 / 8.0)
	kSqrt09_08 = math.Sqrt(9.0 / 8.0)
	kSqrt05_09 = math.Sqrt(5.0 / 9.0)
	kSqrt08_09 = math.Sqrt(8.0 / 9.0)
	kSqrt01_10 = math.Sqrt(1.0 / 10.0)
	kSqrt03_10 = math.Sqrt(3.0 / 10.0)
	kSqrt01_12 = math.Sqrt(1.0 / 12.0)
	kSqrt04_15 = math.Sqrt(4.0 / 15.0)
	kSqrt01_16 = math.Sqrt(1.0 / 16.0)
	kSqrt15_16 = math.Sqrt(15.0 / 16.0)
	kSqrt01_18 = math.Sqrt(1.0 / 18.0)
	kSqrt01_60 = math.Sqrt(1.0 / 60.0)
)

// dotFrom computes the dot product of b[0..n) with a[start:start+n).
func dotFrom(a []float64, start, n int, b []float64) float64 {
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[start+i] * b[i]
	}
	return sum
}

// SHRotator holds the per-band rotation matrices derived from a single 3x3
// rotation, and applies them to a row's f_rest coefficients (spec §4.9).
type SHRotator struct {
	sh1 [3][3]float64
	sh2 [5][5]float64
	sh3 [7][7]float64
}

// NewSHRotator builds the band-1/2/3 rotation matrices from a row-major 3x3
// rotation matrix r (r[row][col]).
func NewSHRotator(r [3][3]float64) *SHRotator {
	s := &SHRotator{}

	// band 1
	s.sh1[0][0] = r[1][1]
	s.sh1[0][1] = -r[1][2]
	s.sh1[0][2] = r[1][0]
	s.sh1[1][0] = -r[2][1]
	s.sh1[1][1] = r[2][2]
	s.sh1[1][2] = -r[2][0]
	s.sh1[2][0] = r[0][1]
	s.sh1[2][1] = -r[0][2]
	s.sh1[2][2] = r[0][0]

	sh1 := s.sh1
	sh2 := &s.sh2

	sh2[0][0] = kSqrt01_04 * ((sh1[2][2]*sh1[0][0] + sh1[2][0]*sh1[0][2]) + (sh1[0][2]*sh1[2][0] + sh1[0][0]*sh1[2][2]))
	sh2[0][1] = sh1[2][1]*sh1[0][0] + sh1[0][1]*sh1[2][0]
	sh2[0][2] = kSqrt03_04 * (sh1[2][1]*sh1[0][1] + sh1[0][1]*sh1[2][1])
	sh2[0][3] = sh1[2][1]*sh1[0][2] + sh1[0][1]*sh1[2][2]
	sh2[0][4] = kSqrt01_04 * ((sh1[2][2]*sh1[0][2] - sh1[2][0]*sh1[0][0]) + (sh1[0][2]*sh1[2][2] - sh1[0][0]*sh1[2][0]))

	sh2[1][0] = kSqrt01_04 * ((sh1[1][2]*sh1[0][0] + sh1[1][0]*sh1[0][2]) + (sh1[0][2]*sh1[1][0] + sh1[0][0]*sh1[1][2]))
	sh2[1][1] = sh1[1][1]*sh1[0][0] + sh1[0][1]*sh1[1][0]
	sh2[1][2] = kSqrt03_04 * (sh1[1][1]*sh1[0][1] + sh1[0][1]*sh1[1][1])
	sh2[1][3] = sh1[1][1]*sh1[0][2] + sh1[0][1]*sh1[1][2]
	sh2[1][4] = kSqrt01_04 * ((sh1[1][2]*sh1[0][2] - sh1[1][0]*sh1[0][0]) + (sh1[0][2]*sh1[1][2] - sh1[0][0]*sh1[1][0]))

	sh2[2][0] = kSqrt01_03*(sh1[1][2]*sh1[1][0]+sh1[1][0]*sh1[1][2]) - kSqrt01_12*((sh1[2][2]*sh1[2][0]+sh1[2][0]*sh1[2][2])+(sh1[0][2]*sh1[0][0]+sh1[0][0]*sh1[0][2]))
	sh2[2][1] = kSqrt04_03*sh1[1][1]*sh1[1][0] - kSqrt01_03*(sh1[2][1]*sh1[2][0]+sh1[0][1]*sh1[0][0])
	sh2[2][2] = sh1[1][1]*sh1[1][1] - kSqrt01_04*(sh1[2][1]*sh1[2][1]+sh1[0][1]*sh1[0][1])
	sh2[2][3] = kSqrt04_03*sh1[1][1]*sh1[1][2] - kSqrt01_03*(sh1[2][1]*sh1[2][2]+sh1[0][1]*sh1[0][2])
	sh2[2][4] = kSqrt01_03*(sh1[1][2]*sh1[1][2]-sh1[1][0]*sh1[1][0]) - kSqrt01_12*((sh1[2][2]*sh1[2][2]-sh1[2][0]*sh1[2][0])+(sh1[0][2]*sh1[0][2]-sh1[0][0]*sh1[0][0]))

	sh2[3][0] = kSqrt01_04 * ((sh1[1][2]*sh1[2][0] + sh1[1][0]*sh1[2][2]) + (sh1[2][2]*sh1[1][0] + sh1[2][0]*sh1[1][2]))
	sh2[3][1] = sh1[1][1]*sh1[2][0] + sh1[2][1]*sh1[1][0]
	sh2[3][2] = kSqrt03_04 * (sh1[1][1]*sh1[2][1] + sh1[2][1]*sh1[1][1])
	sh2[3][3] = sh1[1][1]*sh1[2][2] + sh1[2][1]*sh1[1][2]
	sh2[3][4] = kSqrt01_04 * ((sh1[1][2]*sh1[2][2] - sh1[1][0]*sh1[2][0]) + (sh1[2][2]*sh1[1][2] - sh1[2][0]*sh1[1][0]))

	sh2[4][0] = kSqrt01_04 * ((sh1[2][2]*sh1[2][0] + sh1[2][0]*sh1[2][2]) - (sh1[0][2]*sh1[0][0] + sh1[0][0]*sh1[0][2]))
	sh2[4][1] = sh1[2][1]*sh1[2][0] - sh1[0][1]*sh1[0][0]
	sh2[4][2] = kSqrt03_04 * (sh1[2][1]*sh1[2][1] - sh1[0][1]*sh1[0][1])
	sh2[4][3] = sh1[2][1]*sh1[2][2] - sh1[0][1]*sh1[0][2]
	sh2[4][4] = kSqrt01_04 * ((sh1[2][2]*sh1[2][2] - sh1[2][0]*sh1[2][0]) - (sh1[0][2]*sh1[0][2] - sh1[0][0]*sh1[0][0]))

	sh3 := &s.sh3

	sh3[0][0] = kSqrt01_04 * ((sh1[2][2]*sh2[0][0] + sh1[2][0]*sh2[0][4]) + (sh1[0][2]*sh2[4][0] + sh1[0][0]*sh2[4][4]))
	sh3[0][1] = kSqrt03_02 * (sh1[2][1]*sh2[0][0] + sh1[0][1]*sh2[4][0])
	sh3[0][2] = kSqrt15_16 * (sh1[2][1]*sh2[0][1] + sh1[0][1]*sh2[4][1])
	sh3[0][3] = kSqrt05_06 * (sh1[2][1]*sh2[0][2] + sh1[0][1]*sh2[4][2])
	sh3[0][4] = kSqrt15_16 * (sh1[2][1]*sh2[0][3] + sh1[0][1]*sh2[4][3])
	sh3[0][5] = kSqrt03_02 * (sh1[2][1]*sh2[0][4] + sh1[0][1]*sh2[4][4])
	sh3[0][6] = kSqrt01_04 * ((sh1[2][2]*sh2[0][4] - sh1[2][0]*sh2[0][0]) + (sh1[0][2]*sh2[4][4] - sh1[0][0]*sh2[4][0]))

	sh3[1][0] = kSqrt01_06*(sh1[1][2]*sh2[0][0]+sh1[1][0]*sh2[0][4]) + kSqrt01_06*((sh1[2][2]*sh2[1][0]+sh1[2][0]*sh2[1][4])+(sh1[0][2]*sh2[3][0]+sh1[0][0]*sh2[3][4]))
	sh3[1][1] = sh1[1][1]*sh2[0][0] + (sh1[2][1]*sh2[1][0] + sh1[0][1]*sh2[3][0])
	sh3[1][2] = kSqrt05_08*sh1[1][1]*sh2[0][1] + kSqrt05_08*(sh1[2][1]*sh2[1][1]+sh1[0][1]*sh2[3][1])
	sh3[1][3] = kSqrt05_09*sh1[1][1]*sh2[0][2] + kSqrt05_09*(sh1[2][1]*sh2[1][2]+sh1[0][1]*sh2[3][2])
	sh3[1][4] = kSqrt05_08*sh1[1][1]*sh2[0][3] + kSqrt05_08*(sh1[2][1]*sh2[1][3]+sh1[0][1]*sh2[3][3])
	sh3[1][5] = sh1[1][1]*sh2[0][4] + (sh1[2][1]*sh2[1][4] + sh1[0][1]*sh2[3][4])
	sh3[1][6] = kSqrt01_06*(sh1[1][2]*sh2[0][4]-sh1[1][0]*sh2[0][0]) + kSqrt01_06*((sh1[2][2]*sh2[1][4]-sh1[2][0]*sh2[1][0])+(sh1[0][2]*sh2[3][4]-sh1[0][0]*sh2[3][0]))

	sh3[2][0] = kSqrt04_15*(sh1[1][2]*sh2[1][0]+sh1[1][0]*sh2[1][4]) + kSqrt01_05*(sh1[0][2]*sh2[2][0]+sh1[0][0]*sh2[2][4]) - kSqrt01_60*((sh1[2][2]*sh2[0][0]+sh1[2][0]*sh2[0][4])-(sh1[0][2]*sh2[4][0]+sh1[0][0]*sh2[4][4]))
	sh3[2][1] = kSqrt08_05*sh1[1][1]*sh2[1][0] + kSqrt06_05*sh1[0][1]*sh2[2][0] - kSqrt01_10*(sh1[2][1]*sh2[0][0]-sh1[0][1]*sh2[4][0])
	sh3[2][2] = sh1[1][1]*sh2[1][1] + kSqrt03_04*sh1[0][1]*sh2[2][1] - kSqrt01_16*(sh1[2][1]*sh2[0][1]-sh1[0][1]*sh2[4][1])
	sh3[2][3] = kSqrt08_09*sh1[1][1]*sh2[1][2] + kSqrt02_03*sh1[0][1]*sh2[2][2] - kSqrt01_18*(sh1[2][1]*sh2[0][2]-sh1[0][1]*sh2[4][2])
	sh3[2][4] = sh1[1][1]*sh2[1][3] + kSqrt03_04*sh1[0][1]*sh2[2][3] - kSqrt01_16*(sh1[2][1]*sh2[0][3]-sh1[0][1]*sh2[4][3])
	sh3[2][5] = kSqrt08_05*sh1[1][1]*sh2[1][4] + kSqrt06_05*sh1[0][1]*sh2[2][4] - kSqrt01_10*(sh1[2][1]*sh2[0][4]-sh1[0][1]*sh2[4][4])
	sh3[2][6] = kSqrt04_15*(sh1[1][2]*sh2[1][4]-sh1[1][0]*sh2[1][0]) + kSqrt01_05*(sh1[0][2]*sh2[2][4]-sh1[0][0]*sh2[2][0]) - kSqrt01_60*((sh1[2][2]*sh2[0][4]-sh1[2][0]*sh2[0][0])-(sh1[0][2]*sh2[4][4]-sh1[0][0]*sh2[4][0]))

	sh3[3][0] = kSqrt03_10*(sh1[1][2]*sh2[2][0]+sh1[1][0]*sh2[2][4]) - kSqrt01_10*((sh1[2][2]*sh2[3][0]+sh1[2][0]*sh2[3][4])+(sh1[0][2]*sh2[1][0]+sh1[0][0]*sh2[1][4]))
	sh3[3][1] = kSqrt09_05*sh1[1][1]*sh2[2][0] - kSqrt03_05*(sh1[2][1]*sh2[3][0]+sh1[0][1]*sh2[1][0])
	sh3[3][2] = kSqrt09_08*sh1[1][1]*sh2[2][1] - kSqrt03_08*(sh1[2][1]*sh2[3][1]+sh1[0][1]*sh2[1][1])
	sh3[3][3] = sh1[1][1]*sh2[2][2] - kSqrt01_03*(sh1[2][1]*sh2[3][2]+sh1[0][1]*sh2[1][2])
	sh3[3][4] = kSqrt09_08*sh1[1][1]*sh2[2][3] - kSqrt03_08*(sh1[2][1]*sh2[3][3]+sh1[0][1]*sh2[1][3])
	sh3[3][5] = kSqrt09_05*sh1[1][1]*sh2[2][4] - kSqrt03_05*(sh1[2][1]*sh2[3][4]+sh1[0][1]*sh2[1][4])
	sh3[3][6] = kSqrt03_10*(sh1[1][2]*sh2[2][4]-sh1[1][0]*sh2[2][0]) - kSqrt01_10*((sh1[2][2]*sh2[3][4]-sh1[2][0]*sh2[3][0])+(sh1[0][2]*sh2[1][4]-sh1[0][0]*sh2[1][0]))

	sh3[4][0] = kSqrt04_15*(sh1[1][2]*sh2[3][0]+sh1[1][0]*sh2[3][4]) + kSqrt01_05*(sh1[2][2]*sh2[2][0]+sh1[2][0]*sh2[2][4]) - kSqrt01_60*((sh1[2][2]*sh2[4][0]+sh1[2][0]*sh2[4][4])+(sh1[0][2]*sh2[0][0]+sh1[0][0]*sh2[0][4]))
	sh3[4][1] = kSqrt08_05*sh1[1][1]*sh2[3][0] + kSqrt06_05*sh1[2][1]*sh2[2][0] - kSqrt01_10*(sh1[2][1]*sh2[4][0]+sh1[0][1]*sh2[0][0])
	sh3[4][2] = sh1[1][1]*sh2[3][1] + kSqrt03_04*sh1[2][1]*sh2[2][1] - kSqrt01_16*(sh1[2][1]*sh2[4][1]+sh1[0][1]*sh2[0][1])
	sh3[4][3] = kSqrt08_09*sh1[1][1]*sh2[3][2] + kSqrt02_03*sh1[2][1]*sh2[2][2] - kSqrt01_18*(sh1[2][1]*sh2[4][2]+sh1[0][1]*sh2[0][2])
	sh3[4][4] = sh1[1][1]*sh2[3][3] + kSqrt03_04*sh1[2][1]*sh2[2][3] - kSqrt01_16*(sh1[2][1]*sh2[4][3]+sh1[0][1]*sh2[0][3])
	sh3[4][5] = kSqrt08_05*sh1[1][1]*sh2[3][4] + kSqrt06_05*sh1[2][1]*sh2[2][4] - kSqrt01_10*(sh1[2][1]*sh2[4][4]+sh1[0][1]*sh2[0][4])
	sh3[4][6] = kSqrt04_15*(sh1[1][2]*sh2[3][4]-sh1[1][0]*sh2[3][0]) + kSqrt01_05*(sh1[2][2]*sh2[2][4]-sh1[2][0]*sh2[2][0]) - kSqrt01_60*((sh1[2][2]*sh2[4][4]-sh1[2][0]*sh2[4][0])+(sh1[0][2]*sh2[0][4]-sh1[0][0]*sh2[0][0]))

	sh3[5][0] = kSqrt01_06*(sh1[1][2]*sh2[4][0]+sh1[1][0]*sh2[4][4]) + kSqrt01_06*((sh1[2][2]*sh2[3][0]+sh1[2][0]*sh2[3][4])-(sh1[0][2]*sh2[1][0]+sh1[0][0]*sh2[1][4]))
	sh3[5][1] = sh1[1][1]*sh2[4][0] + (sh1[2][1]*sh2[3][0] - sh1[0][1]*sh2[1][0])
	sh3[5][2] = kSqrt05_08*sh1[1][1]*sh2[4][1] + kSqrt05_08*(sh1[2][1]*sh2[3][1]-sh1[0][1]*sh2[1][1])
	sh3[5][3] = kSqrt05_09*sh1[1][1]*sh2[4][2] + kSqrt05_09*(sh1[2][1]*sh2[3][2]-sh1[0][1]*sh2[1][2])
	sh3[5][4] = kSqrt05_08*sh1[1][1]*sh2[4][3] + kSqrt05_08*(sh1[2][1]*sh2[3][3]-sh1[0][1]*sh2[1][3])
	sh3[5][5] = sh1[1][1]*sh2[4][4] + (sh1[2][1]*sh2[3][4] - sh1[0][1]*sh2[1][4])
	sh3[5][6] = kSqrt01_06*(sh1[1][2]*sh2[4][4]-sh1[1][0]*sh2[4][0]) + kSqrt01_06*((sh1[2][2]*sh2[3][4]-sh1[2][0]*sh2[3][0])-(sh1[0][2]*sh2[1][4]-sh1[0][0]*sh2[1][0]))

	sh3[6][0] = kSqrt01_04 * ((sh1[2][2]*sh2[4][0] + sh1[2][0]*sh2[4][4]) - (sh1[0][2]*sh2[0][0] + sh1[0][0]*sh2[0][4]))
	sh3[6][1] = kSqrt03_02 * (sh1[2][1]*sh2[4][0] - sh1[0][1]*sh2[0][0])
	sh3[6][2] = kSqrt15_16 * (sh1[2][1]*sh2[4][1] - sh1[0][1]*sh2[0][1])
	sh3[6][3] = kSqrt05_06 * (sh1[2][1]*sh2[4][2] - sh1[0][1]*sh2[0][2])
	sh3[6][4] = kSqrt15_16 * (sh1[2][1]*sh2[4][3] - sh1[0][1]*sh2[0][3])
	sh3[6][5] = kSqrt03_02 * (sh1[2][1]*sh2[4][4] - sh1[0][1]*sh2[0][4])
	sh3[6][6] = kSqrt01_04 * ((sh1[2][2]*sh2[4][4] - sh1[2][0]*sh2[4][0]) - (sh1[0][2]*sh2[0][4] - sh1[0][0]*sh2[0][0]))

	return s
}

// Apply rotates a single color channel's f_rest coefficients (length 0, 3,
// 8, or 15, matching 0/1/2/3 SH bands) in place.
func (s *SHRotator) Apply(coeffs []float64) {
	if len(coeffs) < 3 {
		return
	}
	src := append([]float64(nil), coeffs...)

	coeffs[0] = dotFrom(src, 0, 3, s.sh1[0][:])
	coeffs[1] = dotFrom(src, 0, 3, s.sh1[1][:])
	coeffs[2] = dotFrom(src, 0, 3, s.sh1[2][:])

	if len(coeffs) >= 8 {
		coeffs[3] = dotFrom(src, 3, 5, s.sh2[0][:])
		coeffs[4] = dotFrom(src, 3, 5, s.sh2[1][:])
		coeffs[5] = dotFrom(src, 3, 5, s.sh2[2][:])
		coeffs[6] = dotFrom(src, 3, 5, s.sh2[3][:])
		coeffs[7] = dotFrom(src, 3, 5, s.sh2[4][:])
	}

	if len(coeffs) < 15 {
		return
	}
	coeffs[8] = dotFrom(src, 8, 7, s.sh3[0][:])
	coeffs[9] = dotFrom(src, 8, 7, s.sh3[1][:])
	coeffs[10] = dotFrom(src, 8, 7, s.sh3[2][:])
	coeffs[11] = dotFrom(src, 8, 7, s.sh3[3][:])
	coeffs[12] = dotFrom(src, 8, 7, s.sh3[4][:])
	coeffs[13] = dotFrom(src, 8, 7, s.sh3[5][:])
	coeffs[14] = dotFrom(src, 8, 7, s.sh3[6][:])
}

package control

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/varimech/internal/sim"
)

// LQR is static state feedback u = −K(x − x*) over the discrete state
// x = [q_d; p], the pair the step linearization is expressed in.
type LQR struct {
	K     *mat.Dense // nu × 2nd
	QStar []float64  // dynamic configuration at the operating point
	PStar []float64  // momentum at the operating point
}

func NewLQR(k *mat.Dense, qStar, pStar []float64) (*LQR, error) {
	_, cols := k.Dims()
	if cols != len(qStar)+len(pStar) {
		return nil, fmt.Errorf("control: gain has %d columns for state dimension %d",
			cols, len(qStar)+len(pStar))
	}
	return &LQR{K: k, QStar: qStar, PStar: pStar}, nil
}

func (l *LQR) Inputs(t, dt float64, s sim.State) (u, rho []float64) {
	nu, _ := l.K.Dims()
	nd := len(l.QStar)
	u = make([]float64, nu)
	for i := 0; i < nu; i++ {
		acc := 0.0
		for j := 0; j < nd; j++ {
			acc -= l.K.At(i, j) * (s.Q[j] - l.QStar[j])
			acc -= l.K.At(i, nd+j) * (s.P[j] - l.PStar[j])
		}
		u[i] = acc
	}
	return u, nil
}

// DLQR solves the discrete-time infinite-horizon LQR problem for the step
// map x' = Ax + Bu with stage cost xᵀQx + uᵀRu, by fixed-point iteration of
// the Riccati recursion
//
//	P ← Q + Aᵀ(P − PB(R + BᵀPB)⁻¹BᵀP)A
//
// and returns the gain K = (R + BᵀPB)⁻¹BᵀPA. Iteration stops when P changes
// by less than tol in the max norm; failure to converge within maxIter
// reports an error (the pair is likely unstabilizable).
func DLQR(a, b, q, r *mat.Dense, maxIter int, tol float64) (*mat.Dense, error) {
	n, _ := a.Dims()
	_, nu := b.Dims()

	p := mat.NewDense(n, n, nil)
	p.CloneFrom(q)

	var (
		btp  mat.Dense // BᵀP
		btpb mat.Dense // R + BᵀPB
		btpa mat.Dense // BᵀPA
		k    mat.Dense // gain
		pa   mat.Dense
		next mat.Dense
		lu   mat.LU
	)

	for it := 0; it < maxIter; it++ {
		btp.Mul(b.T(), p)
		btpb.Mul(&btp, b)
		btpb.Add(&btpb, r)
		btpa.Mul(&btp, a)

		lu.Factorize(&btpb)
		k.Reset()
		if err := lu.SolveTo(&k, false, &btpa); err != nil {
			return nil, fmt.Errorf("control: riccati gain solve: %w", err)
		}

		// next = Q + Aᵀ P (A − B K)
		pa.Mul(b, &k)
		pa.Sub(a, &pa)
		next.Mul(p, &pa)
		next.Mul(a.T(), &next)
		next.Add(q, &next)

		delta := 0.0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				d := next.At(i, j) - p.At(i, j)
				if d < 0 {
					d = -d
				}
				if d > delta {
					delta = d
				}
			}
		}
		p.CloneFrom(&next)
		if delta < tol {
			out := mat.NewDense(nu, n, nil)
			out.CloneFrom(&k)
			return out, nil
		}
	}
	return nil, fmt.Errorf("control: riccati iteration did not converge in %d iterations", maxIter)
}

package jit

import (
	"fmt"
	"math"
)

func unary(fn func(float64) float64) HostFunc {
	return func(args []float64) (float64, error) {
		return fn(args[0]), nil
	}
}

func binary(fn func(float64, float64) float64) HostFunc {
	return func(args []float64) (float64, error) {
		return fn(args[0], args[1]), nil
	}
}

func (e *Engine) registerBuiltins() {
	e.RegisterHost("putchard", 1, func(args []float64) (float64, error) {
		if _, err := e.out.Write([]byte{byte(int64(args[0]))}); err != nil {
			return 0, err
		}
		return 0, nil
	})
	e.RegisterHost("printd", 1, func(args []float64) (float64, error) {
		if _, err := fmt.Fprintf(e.out, "%f\n", args[0]); err != nil {
			return 0, err
		}
		return 0, nil
	})

	for name, fn := range map[string]func(float64) float64{
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"atan":  math.Atan,
		"exp":   math.Exp,
		"log":   math.Log,
		"sqrt":  math.Sqrt,
		"fabs":  math.Abs,
		"floor": math.Floor,
		"ceil":  math.Ceil,
	} {
		e.RegisterHost(name, 1, unary(fn))
	}
	e.RegisterHost("atan2", 2, binary(math.Atan2))
	e.RegisterHost("pow", 2, binary(math.Pow))
	e.RegisterHost("fmod", 2, binary(math.Mod))
}

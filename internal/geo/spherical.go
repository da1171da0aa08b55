// Package geo provides the spherical/Cartesian coordinate conversions
// used at the sensor boundary. Angles are radians; azimuth follows the
// standard math convention (counter-clockwise from the x axis) and
// elevation is measured from the xy plane.
package geo

import "math"

// SphToCart converts a polar measurement to Cartesian coordinates:
//
//	x = r*cos(el)*cos(az)
//	y = r*cos(el)*sin(az)
//	z = r*sin(el)
func SphToCart(az, el, r float64) (x, y, z float64) {
	x = r * math.Cos(el) * math.Cos(az)
	y = r * math.Cos(el) * math.Sin(az)
	z = r * math.Sin(el)
	return x, y, z
}

// CartToSph is the inverse of SphToCart. Azimuth is returned in
// (-pi, pi] and elevation in [-pi/2, pi/2].
func CartToSph(x, y, z float64) (r, az, el float64) {
	r = math.Sqrt(x*x + y*y + z*z)
	el = math.Atan2(z, math.Sqrt(x*x+y*y))
	az = math.Atan2(y, x)
	return r, az, el
}

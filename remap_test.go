package qrep

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestRemapDense(t *testing.T) {
	Convey("Given a dense layout at distance 3", t, func() {
		layout := Dense{}

		Convey("Address 0 should be read from the rightmost character", func() {
			// addresses 5..0: single, code2, anc1, code1, anc0, code0
			out, err := Remap("100001", 3, layout)
			So(err, ShouldBeNil)
			So(out.Full, ShouldEqual, "10000")
			So(out.Code, ShouldEqual, "100")
			So(out.Single, ShouldEqual, "1")
		})

		Convey("Code qubits should be the even positions of the full string", func() {
			out, err := Remap("011010", 3, layout)
			So(err, ShouldBeNil)
			So(out.Full, ShouldEqual, "01011")
			So(out.Code, ShouldEqual, "001")
			So(out.Single, ShouldEqual, "0")
		})

		Convey("Repeated application should give identical outcomes", func() {
			a, _ := Remap("110101", 3, layout)
			b, _ := Remap("110101", 3, layout)
			So(a, ShouldResemble, b)
		})

		Convey("It should reject a raw string of the wrong width", func() {
			_, err := Remap("10101", 3, layout)
			So(err, ShouldNotBeNil)
		})

		Convey("It should reject non-binary characters", func() {
			_, err := Remap("10a101", 3, layout)
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Given a distance below 2", t, func() {
		_, err := Remap("10", 1, Dense{})
		So(errors.Is(err, ErrInvalidDistance), ShouldBeTrue)
	})
}

func TestRemapModular(t *testing.T) {
	Convey("Given the default modular layout", t, func() {
		layout := DefaultModular()

		Convey("Addresses should start at the offset and wrap round the register", func() {
			So(layout.Address(0), ShouldEqual, 1)
			So(layout.Address(14), ShouldEqual, 15)
			So(layout.Address(15), ShouldEqual, 0)
			So(layout.Width(3), ShouldEqual, 16)
		})

		Convey("It should read each position from its address", func() {
			// only address 1 (position 0) and address 6 (single, position 5) set
			raw := []byte("0000000000000000")
			raw[16-1-1] = '1'
			raw[16-1-6] = '1'

			out, err := Remap(string(raw), 3, layout)
			So(err, ShouldBeNil)
			So(out.Full, ShouldEqual, "10000")
			So(out.Code, ShouldEqual, "100")
			So(out.Single, ShouldEqual, "1")
		})

		Convey("It should reject codes that do not fit the register", func() {
			So(layout.Validate(8), ShouldBeNil)
			So(layout.Validate(9), ShouldNotBeNil)
		})
	})

	Convey("Given a stride sharing a factor with the register", t, func() {
		layout := Modular{Register: 16, Offset: 0, Stride: 2}
		So(layout.Validate(3), ShouldNotBeNil)
	})

	Convey("Given a coprime stride", t, func() {
		layout := Modular{Register: 16, Offset: 3, Stride: 5}

		Convey("Every position should land on a distinct address", func() {
			seen := make(map[int]bool)
			for j := 0; j < 16; j++ {
				a := layout.Address(j)
				So(seen[a], ShouldBeFalse)
				seen[a] = true
			}
		})
	})
}

func TestParseLayout(t *testing.T) {
	Convey("Given layout names", t, func() {
		l, err := ParseLayout("dense", 0, 0, 0)
		So(err, ShouldBeNil)
		So(l, ShouldResemble, Dense{})

		l, err = ParseLayout("modular", 16, 1, 1)
		So(err, ShouldBeNil)
		So(l, ShouldResemble, DefaultModular())

		_, err = ParseLayout("ring", 0, 0, 0)
		So(err, ShouldNotBeNil)
	})
}

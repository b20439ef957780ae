// Package rospy_tutorials provides hand-written fixtures for the
// rospy_tutorials service package, standing in for the out-of-scope
// code generator's output.
package rospy_tutorials

import (
	"github.com/go-ros/rosnode"
	"github.com/go-ros/rosnode/wire"
)

// AddTwoIntsRequest is the rospy_tutorials/AddTwoInts request: two
// 64-bit integers.
type AddTwoIntsRequest struct {
	A, B int64
}

// Serialize implements ros.TypedMessage.
func (r *AddTwoIntsRequest) Serialize(b *wire.Builder) {
	b.I64(r.A)
	b.I64(r.B)
}

// Deserialize implements ros.TypedMessage.
func (r *AddTwoIntsRequest) Deserialize(s *wire.Scanner) error {
	a, err := s.I64()
	if err != nil {
		return err
	}
	b, err := s.I64()
	if err != nil {
		return err
	}
	r.A, r.B = a, b
	return nil
}

// Size implements ros.TypedMessage.
func (r *AddTwoIntsRequest) Size() int { return 16 }

// AddTwoIntsResponse is the rospy_tutorials/AddTwoInts response: the
// sum of the request's two fields.
type AddTwoIntsResponse struct {
	Sum int64
}

// Serialize implements ros.TypedMessage.
func (r *AddTwoIntsResponse) Serialize(b *wire.Builder) { b.I64(r.Sum) }

// Deserialize implements ros.TypedMessage.
func (r *AddTwoIntsResponse) Deserialize(s *wire.Scanner) error {
	v, err := s.I64()
	if err != nil {
		return err
	}
	r.Sum = v
	return nil
}

// Size implements ros.TypedMessage.
func (r *AddTwoIntsResponse) Size() int { return 8 }

// Type is the ros.ServiceType for AddTwoInts.
type Type struct{}

// MD5Sum implements ros.ServiceType: the joint fingerprint over the
// request and response schemas concatenated with no separator (spec
// §3).
func (Type) MD5Sum() string { return "6a2e34150c00229791cc89ff309fff21" }

// DataType implements ros.ServiceType.
func (Type) DataType() string { return "rospy_tutorials/AddTwoInts" }

// NewRequest implements ros.ServiceType.
func (Type) NewRequest() ros.TypedMessage { return &AddTwoIntsRequest{} }

// NewResponse implements ros.ServiceType.
func (Type) NewResponse() ros.TypedMessage { return &AddTwoIntsResponse{} }

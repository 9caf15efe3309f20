package btree_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/libbtreego/libbtree/pkg/btree"
	"github.com/libbtreego/libbtree/pkg/memstore"
)

// TestIteratorBoundaryBehaviors is written BDD-style with goconvey, the
// corpus's ecosystem-idiomatic alternative to table-driven t.Run for
// behavior-shaped specs (the iterator's Begin/End/Next/Prev boundary
// crossings read naturally as nested Convey blocks).
func TestIteratorBoundaryBehaviors(t *testing.T) {
	Convey("Given a tree with five elements", t, func() {
		store := memstore.New[int](4, false)
		tree, err := btree.New[int](store, cmpInt, 0)
		So(err, ShouldBeNil)
		for _, v := range []int{10, 20, 30, 40, 50} {
			So(tree.Insert(v), ShouldBeNil)
		}

		Convey("Begin() positions at the smallest element", func() {
			it, err := tree.Begin()
			So(err, ShouldBeNil)
			So(it.AtEnd(), ShouldBeFalse)
			v, err := it.Element()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 10)
		})

		Convey("End() is past the last element", func() {
			it, err := tree.End()
			So(err, ShouldBeNil)
			So(it.AtEnd(), ShouldBeTrue)
		})

		Convey("Next() from the last element reaches End()", func() {
			it, err := tree.Begin()
			So(err, ShouldBeNil)
			for i := 0; i < 4; i++ {
				So(it.Next(), ShouldBeNil)
			}
			So(it.AtEnd(), ShouldBeFalse)
			v, err := it.Element()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 50)

			So(it.Next(), ShouldBeNil)
			So(it.AtEnd(), ShouldBeTrue)
		})

		Convey("Prev() from End() reaches the last element", func() {
			it, err := tree.End()
			So(err, ShouldBeNil)
			So(it.Prev(), ShouldBeNil)
			So(it.AtEnd(), ShouldBeFalse)
			v, err := it.Element()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 50)
		})

		Convey("Prev() past Begin() fails", func() {
			it, err := tree.Begin()
			So(err, ShouldBeNil)
			err = it.Prev()
			So(err, ShouldNotBeNil)
		})

		Convey("FindLower locates an existing key", func() {
			it, err := tree.FindLower(30)
			So(err, ShouldBeNil)
			So(it.AtEnd(), ShouldBeFalse)
			v, err := it.Element()
			So(err, ShouldBeNil)
			So(v, ShouldEqual, 30)
		})

		Convey("Index() reports the iterator's rank", func() {
			it, err := tree.FindLower(30)
			So(err, ShouldBeNil)
			idx, err := it.Index()
			So(err, ShouldBeNil)
			So(idx, ShouldEqual, 2)
		})
	})
}

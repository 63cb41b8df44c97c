package diff

import (
	"testing"

	"promo-stop-alerts/internal/marketplace"
)

func TestActionableFiltersIgnored(t *testing.T) {
	promo := marketplace.Promotion{ID: "p1", Title: "Summer sale", IsActive: true}
	products := []marketplace.Product{
		{ID: "100", PromotionID: "p1"},
		{ID: "200", PromotionID: "p1"},
		{ID: "300", PromotionID: "p1"},
	}
	ignored := IgnoreSet{"200": {}}

	items := Actionable(promo, products, ignored)
	if len(items) != 2 {
		t.Fatalf("期望 2 个可操作商品, 实际 %d", len(items))
	}
	for _, item := range items {
		if item.Product.ID == "200" {
			t.Fatal("忽略列表中的商品不应出现")
		}
	}
}

func TestActionablePreservesOrder(t *testing.T) {
	promo := marketplace.Promotion{ID: "p1"}
	products := []marketplace.Product{{ID: "3"}, {ID: "1"}, {ID: "2"}}

	items := Actionable(promo, products, nil)
	want := []string{"3", "1", "2"}
	for i, item := range items {
		if item.Product.ID != want[i] {
			t.Fatalf("位置 %d 期望 %s, 实际 %s", i, want[i], item.Product.ID)
		}
	}
}

func TestActionableAttachesPromotion(t *testing.T) {
	promo := marketplace.Promotion{ID: "p9", Title: "Flash", DateEnd: "2026-09-01"}
	items := Actionable(promo, []marketplace.Product{{ID: "1"}}, IgnoreSet{})
	if len(items) != 1 {
		t.Fatalf("期望 1 个条目, 实际 %d", len(items))
	}
	if items[0].Promotion.Title != "Flash" {
		t.Fatalf("条目应携带促销上下文: %#v", items[0].Promotion)
	}
}

func TestActionableEmptyInput(t *testing.T) {
	items := Actionable(marketplace.Promotion{ID: "p1"}, nil, IgnoreSet{"x": {}})
	if len(items) != 0 {
		t.Fatalf("空输入应返回空结果, 实际 %d", len(items))
	}
}

func TestIgnoreSetContains(t *testing.T) {
	var empty IgnoreSet
	if empty.Contains("1") {
		t.Fatal("nil 集合不应包含任何商品")
	}
	s := IgnoreSet{"1": {}}
	if !s.Contains("1") || s.Contains("2") {
		t.Fatalf("Contains 判定错误: %#v", s)
	}
}

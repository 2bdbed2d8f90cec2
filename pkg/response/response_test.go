package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestTotalPages(t *testing.T) {
	tests := []struct {
		name     string
		total    int64
		pageSize int
		want     int
	}{
		{"整除", 40, 20, 2},
		{"有余数", 41, 20, 3},
		{"不足一页", 5, 20, 1},
		{"空列表", 0, 20, 0},
		{"页大小为 0", 10, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := totalPages(tt.total, tt.pageSize); got != tt.want {
				t.Errorf("totalPages(%d, %d) = %d, want %d", tt.total, tt.pageSize, got, tt.want)
			}
		})
	}
}

func TestOKPage(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	OKPage(c, []string{"a", "b"}, 21, 2, 10)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var body struct {
		Code int      `json:"code"`
		Data PageData `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Code != CodeOK || body.Data.Pagination.TotalPages != 3 || body.Data.Pagination.Page != 2 {
		t.Errorf("unexpected page body %+v", body)
	}
}

func TestErrorWithData_ConflictDetail(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	ErrorWithData(c, http.StatusConflict, 21004, "考场已被占用: A101", map[string][]string{"rooms": {"A101"}})

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var body Response
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	data, _ := body.Data.(map[string]interface{})
	if body.Code != 21004 || data["rooms"] == nil {
		t.Errorf("unexpected body %+v", body)
	}
}

func TestInternalError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	InternalError(c)

	var body Response
	json.Unmarshal(w.Body.Bytes(), &body)
	if w.Code != http.StatusInternalServerError || body.Code != CodeInternal || body.Details != "" {
		t.Errorf("unexpected internal error body %d %+v", w.Code, body)
	}
}

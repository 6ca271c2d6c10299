package dogapp

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// StatusSuccess 后端成功时 status 字段的值
const StatusSuccess = "success"

// DogResponse GET /api/dogs 的响应；message 为字符串或字符串数组
type DogResponse struct {
	Status string
	Images []string
	IsList bool
}

// BreedsResponse GET /api/dogs/breeds 的响应；message 的键为品种名
type BreedsResponse struct {
	Status string
	Breeds map[string][]string
}

// Names 返回排序后的品种名
func (b BreedsResponse) Names() []string {
	names := make([]string, 0, len(b.Breeds))
	for n := range b.Breeds {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DogBody 构造单张图片的成功响应体
func DogBody(imageURL string) []byte {
	body, _ := sjson.SetBytes([]byte(`{}`), "message", imageURL)
	body, _ = sjson.SetBytes(body, "status", StatusSuccess)
	return body
}

// DogListBody 构造图片列表的成功响应体
func DogListBody(imageURLs ...string) []byte {
	body, _ := sjson.SetBytes([]byte(`{}`), "message", imageURLs)
	body, _ = sjson.SetBytes(body, "status", StatusSuccess)
	return body
}

// BreedsBody 构造品种列表响应体
func BreedsBody(breeds map[string][]string) []byte {
	body := []byte(`{"message":{}}`)
	for _, name := range (BreedsResponse{Breeds: breeds}).Names() {
		subs := breeds[name]
		if subs == nil {
			subs = []string{}
		}
		body, _ = sjson.SetBytes(body, "message."+escapePath(name), subs)
	}
	body, _ = sjson.SetBytes(body, "status", StatusSuccess)
	return body
}

// ErrorBody 构造失败响应体
func ErrorBody(msg string) []byte {
	body, _ := sjson.SetBytes([]byte(`{}`), "error", msg)
	return body
}

// ImageURL 返回上游图片地址
func ImageURL(breed, file string) string {
	return fmt.Sprintf("https://%s/breeds/%s/%s", ImageHost, breed, file)
}

// ParseDogResponse 解析并校验 /api/dogs 响应体
func ParseDogResponse(body []byte) (DogResponse, error) {
	if !gjson.ValidBytes(body) {
		return DogResponse{}, fmt.Errorf("body is not valid JSON")
	}
	res := gjson.ParseBytes(body)
	out := DogResponse{Status: res.Get("status").String()}
	msg := res.Get("message")
	switch {
	case !msg.Exists():
		return out, fmt.Errorf("missing message")
	case msg.IsArray():
		out.IsList = true
		for _, v := range msg.Array() {
			if v.Type != gjson.String {
				return out, fmt.Errorf("message array holds %s, want strings", v.Type)
			}
			out.Images = append(out.Images, v.String())
		}
	case msg.Type == gjson.String:
		out.Images = []string{msg.String()}
	default:
		return out, fmt.Errorf("message is %s, want string or array", msg.Type)
	}
	return out, nil
}

// ParseBreedsResponse 解析并校验 /api/dogs/breeds 响应体
func ParseBreedsResponse(body []byte) (BreedsResponse, error) {
	if !gjson.ValidBytes(body) {
		return BreedsResponse{}, fmt.Errorf("body is not valid JSON")
	}
	res := gjson.ParseBytes(body)
	out := BreedsResponse{Status: res.Get("status").String(), Breeds: map[string][]string{}}
	msg := res.Get("message")
	if !msg.IsObject() {
		return out, fmt.Errorf("message is %s, want object", msg.Type)
	}
	msg.ForEach(func(k, v gjson.Result) bool {
		var subs []string
		for _, s := range v.Array() {
			subs = append(subs, s.String())
		}
		out.Breeds[k.String()] = subs
		return true
	})
	return out, nil
}

func escapePath(s string) string {
	r := strings.NewReplacer(".", `\.`, "*", `\*`, "?", `\?`)
	return r.Replace(s)
}

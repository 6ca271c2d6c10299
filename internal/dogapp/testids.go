// Package dogapp 描述被测应用 Dog Image Browser 对外暴露的契约：
// 测试标识、页面文案以及后端 /api/dogs 接口的载荷格式。
package dogapp

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// 页面上的测试标识（data-testid）
const (
	TestIDPageTitle      = "page-title"
	TestIDPageSubtitle   = "page-subtitle"
	TestIDBreedSelector  = "breed-selector"
	TestIDFetchButton    = "fetch-dog-button"
	TestIDImageContainer = "dog-image-container"
	TestIDImage          = "dog-image"
	TestIDPlaceholder    = "placeholder-message"
	TestIDError          = "error-message"
)

// 页面文案
const (
	TitleText       = "Dog Image Browser"
	SubtitleText    = "Powered by Dog CEO API"
	FetchButtonText = "Get Random Dog"
	LoadingText     = "Loading..."
	PlaceholderText = `Click "Get Random Dog" to see a cute dog!`
	ErrorText       = "Failed to load dog image"
	AllBreedsLabel  = "All Breeds (Random)"
)

// 后端接口
const (
	DogsPath   = "/api/dogs"
	BreedsPath = "/api/dogs/breeds"
	BreedParam = "breed"
	ImageHost  = "images.dog.ceo"
)

// BreedLabel 下拉框中展示的品种名：首字母大写
func BreedLabel(breed string) string {
	if breed == "" {
		return breed
	}
	r, size := utf8.DecodeRuneInString(breed)
	return string(unicode.ToUpper(r)) + breed[size:]
}

// IsCapitalized 判断展示名首字母是否为大写
func IsCapitalized(label string) bool {
	r, _ := utf8.DecodeRuneInString(strings.TrimSpace(label))
	return r != utf8.RuneError && unicode.ToUpper(r) == r
}

// DogsQuery 返回请求指定品种时的路由模式
func DogsQuery(breed string) string {
	if breed == "" {
		return DogsPath
	}
	return DogsPath + "?" + BreedParam + "=" + breed
}

package model

// Song 可选歌曲
type Song struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// DefaultSongs 默认歌曲列表（マジカルミライ 2025 对象曲）
var DefaultSongs = []Song{
	{ID: "ULcJ", Title: "ストリートライト", Artist: "加賀(ネギシャワーP)", URL: "https://piapro.jp/t/ULcJ/20250205120202"},
	{ID: "SuQO", Title: "アリフレーション", Artist: "雨良 Amala", URL: "https://piapro.jp/t/SuQO/20250127235813"},
	{ID: "Ppc9", Title: "インフォーマルダイブ", Artist: "99piano", URL: "https://piapro.jp/t/Ppc9/20241224135843"},
	{ID: "oTaJ", Title: "ハロー、フェルミ。", Artist: "ど～ぱみん", URL: "https://piapro.jp/t/oTaJ/20250204234235"},
	{ID: "GCgy", Title: "パレードレコード", Artist: "きさら", URL: "https://piapro.jp/t/GCgy/20250202202635"},
	{ID: "CyPO", Title: "ロンリーラン", Artist: "海風太陽", URL: "https://piapro.jp/t/CyPO/20250128183915"},
}

// DefaultSongID 未指定歌曲时使用 ストリートライト
const DefaultSongID = "ULcJ"

// FindSong 在默认列表中按 ID 查找歌曲
func FindSong(id string) (Song, bool) {
	for _, s := range DefaultSongs {
		if s.ID == id {
			return s, true
		}
	}
	return Song{}, false
}

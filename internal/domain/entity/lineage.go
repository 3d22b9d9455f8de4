package entity

// Lineage 语言代码 -> 已并入的该语言最高版本号
type Lineage map[string]int

// Clone 复制谱系
func (l Lineage) Clone() Lineage {
	out := make(Lineage, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

// Get 读取某语言已并入的版本号
func (l Lineage) Get(languageCode string) (int, bool) {
	v, ok := l[languageCode]
	return v, ok
}

func (l Lineage) raise(languageCode string, number int) {
	if cur, ok := l[languageCode]; !ok || number > cur {
		l[languageCode] = number
	}
}

// MergeLineage 合并父版本谱系：先记录各父版本自身的 (语言, 版本号)，再并入父版本的谱系，逐项取最大值
func MergeLineage(parents []*SubtitleVersion) Lineage {
	out := make(Lineage)
	for _, p := range parents {
		out.raise(p.LanguageCode, p.VersionNumber)
	}
	for _, p := range parents {
		for lang, number := range p.Lineage {
			out.raise(lang, number)
		}
	}
	return out
}

// TranslationSource 在与 languageCode 不同语言的父版本中选最近创建的一个；没有则返回 nil
func TranslationSource(languageCode string, parents []*SubtitleVersion) *SubtitleVersion {
	var source *SubtitleVersion
	for _, p := range parents {
		if p == nil || p.LanguageCode == languageCode {
			continue
		}
		if source == nil || p.CreatedAt.After(source.CreatedAt) ||
			(p.CreatedAt.Equal(source.CreatedAt) && p.ID > source.ID) {
			source = p
		}
	}
	return source
}

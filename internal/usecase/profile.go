package usecase

// Profile is the language-specific knowledge of the assistant: keyword
// lists and word-count thresholds for intent classification, and the system
// instructions used per intent.
type Profile struct {
	DomainKeywords []string `yaml:"domain_keywords"`
	SocialKeywords []string `yaml:"social_keywords"`

	// A prompt with a social keyword is social only when it has fewer than
	// SocialMaxWords words.
	SocialMaxWords int `yaml:"social_max_words"`
	// A keyword-free prompt with more than DomainMinWords words is domain.
	DomainMinWords int `yaml:"domain_min_words"`

	SocialInstruction string `yaml:"social_instruction"`
	DomainInstruction string `yaml:"domain_instruction"`

	// Apology is streamed when every credential failed.
	Apology string `yaml:"apology"`
}

func DefaultProfile() Profile {
	return Profile{
		DomainKeywords: []string{
			"luật", "nghị định", "giao thông", "mức phạt", "phạt", "xử phạt", "vi phạm",
			"biển báo", "đèn đỏ", "đèn tín hiệu", "nồng độ cồn", "rượu bia", "mũ bảo hiểm",
			"bằng lái", "giấy phép lái xe", "gplx", "tốc độ", "làn đường", "vượt xe",
			"xe máy", "xe mô tô", "xe gắn máy", "ô tô", "đăng ký xe", "đăng kiểm",
			"cảnh sát giao thông", "csgt", "tước", "tạm giữ", "sa hình",
		},
		SocialKeywords: []string{
			"chào", "hello", "alo", "cảm ơn", "cám ơn", "thanks", "bạn là ai", "tên gì",
			"tạm biệt", "bye", "khỏe không", "vui", "buồn", "haha", "hihi", "ok",
		},
		SocialMaxWords: 6,
		DomainMinWords: 15,
		SocialInstruction: `Bạn là Trợ lý Luật Giao thông thân thiện.
- Trả lời ngắn gọn, tự nhiên, bằng tiếng Việt.
- Nếu người dùng chào hỏi hoặc tâm sự, hãy đáp lại lịch sự và gợi ý họ có thể hỏi về mức phạt, biển báo hoặc quy tắc giao thông.
- Không bịa đặt điều luật.`,
		DomainInstruction: `Bạn là chuyên gia tư vấn Luật Giao thông đường bộ Việt Nam (Nghị định 100/2019, 123/2021 và 168/2024).
- Ưu tiên dùng các điều luật được cung cấp trong phần tham khảo.
- Nêu rõ hành vi vi phạm, mức phạt tiền và hình thức xử phạt bổ sung (nếu có).
- Trình bày bằng markdown, có tiêu đề và gạch đầu dòng.
- Nếu không chắc chắn, hãy nói rõ và khuyên người dùng tra cứu văn bản gốc.`,
		Apology: "Xin lỗi, hệ thống đang bận và chưa thể trả lời lúc này. Bạn vui lòng thử lại sau giây lát nhé!",
	}
}

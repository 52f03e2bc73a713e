package catalog

// Functions is the builtin function table, in completion order.
var Functions = []Function{
	{
		Name:  "control_delete_this_clone",
		Gloss: "删除此克隆体",
	},
	{
		Name:   "control_wait",
		Gloss:  "等待 (DURATION) 秒",
		Params: []string{"DURATION"},
	},
	{
		Name:   "data_addtolist",
		Gloss:  "将 (ITEM) 添加至 [LIST]",
		Params: []string{"LIST", "ITEM"},
	},
	{
		Name:   "data_changevariableby",
		Gloss:  "将 [VARIABLE] 增加 (VALUE)",
		Params: []string{"VARIABLE", "VALUE"},
	},
	{
		Name:   "data_deletealloflist",
		Gloss:  "删除 [LIST] 的全部项目",
		Params: []string{"LIST"},
	},
	{
		Name:   "data_deleteoflist",
		Gloss:  "删除 [LIST] 的第 (INDEX) 项",
		Params: []string{"LIST", "INDEX"},
	},
	{
		Name:   "data_itemoflist",
		Gloss:  "[LIST] 的第 (INDEX) 项",
		Params: []string{"LIST", "INDEX"},
	},
	{
		Name:   "data_lengthoflist",
		Gloss:  "[LIST] 的项目数",
		Params: []string{"LIST"},
	},
	{
		Name:   "data_replaceitemoflist",
		Gloss:  "将 [LIST] 的第 (INDEX) 项替换为 (ITEM)",
		Params: []string{"LIST", "INDEX", "ITEM"},
	},
	{
		Name:   "data_setvariableto",
		Gloss:  "将 [VARIABLE] 设为 (VALUE)",
		Params: []string{"VARIABLE", "VALUE"},
	},
	{
		Name:   "looks_say",
		Gloss:  "说 (MESSAGE)",
		Params: []string{"MESSAGE"},
	},
	{
		Name:   "looks_sayforsecs",
		Gloss:  "说 (MESSAGE) (SECS) 秒",
		Params: []string{"MESSAGE", "SECS"},
	},
	{
		Name:   "looks_think",
		Gloss:  "思考 (MESSAGE)",
		Params: []string{"MESSAGE"},
	},
	{
		Name:   "looks_thinkforsecs",
		Gloss:  "思考 (MESSAGE) (SECS) 秒",
		Params: []string{"MESSAGE", "SECS"},
	},
	{
		Name:   "motion_changexby",
		Gloss:  "将 x 坐标增加 (DX)",
		Params: []string{"DX"},
	},
	{
		Name:   "motion_changeyby",
		Gloss:  "将 y 坐标增加 (DY)",
		Params: []string{"DY"},
	},
	{
		Name:  "motion_direction",
		Gloss: "方向",
	},
	{
		Name:   "motion_glidesecstoxy",
		Gloss:  "在 (SECS) 秒内滑行到 x: (X) y: (Y)",
		Params: []string{"SECS", "X", "Y"},
	},
	{
		Name:   "motion_gotoxy",
		Gloss:  "移到 x: (X) y: (Y)",
		Params: []string{"X", "Y"},
	},
	{
		Name:  "motion_ifonedgebounce",
		Gloss: "碰到边缘就反弹",
	},
	{
		Name:   "motion_movesteps",
		Gloss:  "移动 (STEPS) 步",
		Params: []string{"STEPS"},
	},
	{
		Name:   "motion_pointindirection",
		Gloss:  "面向 (DIRECTION) 方向",
		Params: []string{"DIRECTION"},
	},
	{
		Name:   "motion_setx",
		Gloss:  "将 x 坐标设为 (X)",
		Params: []string{"X"},
	},
	{
		Name:   "motion_sety",
		Gloss:  "将 y 坐标设为 (Y)",
		Params: []string{"Y"},
	},
	{
		Name:   "motion_turnleft",
		Gloss:  "左转 (DEGREES) 度",
		Params: []string{"DEGREES"},
	},
	{
		Name:   "motion_turnright",
		Gloss:  "右转 (DEGREES) 度",
		Params: []string{"DEGREES"},
	},
	{
		Name:  "motion_xposition",
		Gloss: "x 坐标",
	},
	{
		Name:  "motion_yposition",
		Gloss: "y 坐标",
	},
	{
		Name:   "operator_add",
		Gloss:  "(NUM1) + (NUM2)",
		Params: []string{"NUM1", "NUM2"},
	},
	{
		Name:   "operator_and",
		Gloss:  "<OPERAND1> 与 <OPERAND2>",
		Params: []string{"OPERAND1", "OPERAND2"},
	},
	{
		Name:   "operator_contains",
		Gloss:  "(STRING1) 包含 (STRING2)？",
		Params: []string{"STRING1", "STRING2"},
	},
	{
		Name:   "operator_divide",
		Gloss:  "(NUM1) / (NUM2)",
		Params: []string{"NUM1", "NUM2"},
	},
	{
		Name:   "operator_equals",
		Gloss:  "(OPERAND1) = (OPERAND2)",
		Params: []string{"OPERAND1", "OPERAND2"},
	},
	{
		Name:   "operator_gt",
		Gloss:  "(OPERAND1) > (OPERAND2)",
		Params: []string{"OPERAND1", "OPERAND2"},
	},
	{
		Name:   "operator_join",
		Gloss:  "连接 (STRING1) 和 (STRING2)",
		Params: []string{"STRING1", "STRING2"},
	},
	{
		Name:   "operator_letter_of",
		Gloss:  "(STRING) 的第 (LETTER) 个字符",
		Params: []string{"STRING", "LETTER"},
	},
	{
		Name:   "operator_lt",
		Gloss:  "(OPERAND1) < (OPERAND2)",
		Params: []string{"OPERAND1", "OPERAND2"},
	},
	{
		Name:   "operator_mod",
		Gloss:  "(NUM1) 除以 (NUM2) 的余数",
		Params: []string{"NUM1", "NUM2"},
	},
	{
		Name:   "operator_multiply",
		Gloss:  "(NUM1) * (NUM2)",
		Params: []string{"NUM1", "NUM2"},
	},
	{
		Name:   "operator_not",
		Gloss:  "<OPERAND> 不成立",
		Params: []string{"OPERAND"},
	},
	{
		Name:   "operator_or",
		Gloss:  "<OPERAND1> 或 <OPERAND2>",
		Params: []string{"OPERAND1", "OPERAND2"},
	},
	{
		Name:   "operator_subtract",
		Gloss:  "(NUM1) - (NUM2)",
		Params: []string{"NUM1", "NUM2"},
	},
	{
		Name:       "pen_changePenSizeBy",
		Gloss:      "将笔的粗细增加 (SIZE)",
		Params:     []string{"SIZE"},
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_clear",
		Gloss:      "全部擦除",
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_penDown",
		Gloss:      "落笔",
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_penUp",
		Gloss:      "抬笔",
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_setPenColorToColor",
		Gloss:      "将笔的颜色设为 (COLOR)",
		Params:     []string{"COLOR"},
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_setPenSizeTo",
		Gloss:      "将笔的粗细设为 (SIZE)",
		Params:     []string{"SIZE"},
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:       "pen_stamp",
		Gloss:      "图章",
		Extensions: []Extension{ExtensionPen},
	},
	{
		Name:  "sensing_answer",
		Gloss: "回答",
	},
	{
		Name:   "sensing_askandwait",
		Gloss:  "询问 (QUESTION) 并等待",
		Params: []string{"QUESTION"},
	},
	{
		Name:  "sensing_loudness",
		Gloss: "响度",
	},
}
